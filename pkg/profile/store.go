// Package profile holds the user's dietary profile for the current session.
//
// The store is edited by the profile surface (CLI flags or the profile file)
// and read by the orchestrator, which takes a snapshot each time it builds a
// request.
package profile

import (
	"fmt"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/helmcode/labellens/pkg/model"
)

// Store is what the orchestrator reads when building a request.
type Store interface {
	CurrentProfile() model.UserProfile
}

var (
	allergenNames = sets.New(
		"peanut", "tree_nut", "dairy", "gluten", "egg", "shellfish", "sesame", "soy",
	)
	sensitivityNames = sets.New(
		"avoid_artificial_colors", "avoid_artificial_sweeteners", "avoid_ultra_processed", "caffeine_sensitive",
	)
)

// AllergenNames lists the allergens a profile can switch on, sorted.
func AllergenNames() []string { return sets.List(allergenNames) }

// SensitivityNames lists the sensitivity flags a profile can switch on, sorted.
func SensitivityNames() []string { return sets.List(sensitivityNames) }

// MemoryStore keeps the profile in memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	profile model.UserProfile
}

func NewMemoryStore(p model.UserProfile) *MemoryStore {
	return &MemoryStore{profile: p.Clone()}
}

// CurrentProfile returns a snapshot; later edits do not affect it.
func (s *MemoryStore) CurrentProfile() model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

// Replace swaps in a whole new profile after validating it.
func (s *MemoryStore) Replace(p model.UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.profile = p.Clone()
	s.mu.Unlock()
	return nil
}

// Update applies fn to a copy of the profile and keeps the result only if it validates.
func (s *MemoryStore) Update(fn func(p *model.UserProfile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.profile.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.profile = next
	return nil
}

func (s *MemoryStore) SetGoal(goal string) error {
	return s.Update(func(p *model.UserProfile) error {
		p.Goal = model.Goal(strings.ToLower(strings.TrimSpace(goal)))
		return nil
	})
}

func (s *MemoryStore) SetDiet(diet string) error {
	return s.Update(func(p *model.UserProfile) error {
		d := strings.TrimSpace(diet)
		for _, known := range []model.Diet{model.DietHalal, model.DietVegetarian, model.DietVegan} {
			if strings.EqualFold(d, string(known)) {
				d = string(known)
			}
		}
		p.Diet = model.Diet(d)
		return nil
	})
}

// SetAllergen switches one allergen flag by its wire name.
func (s *MemoryStore) SetAllergen(name string, on bool) error {
	name = normalizeName(name)
	if !allergenNames.Has(name) {
		return fmt.Errorf("unknown allergen %q (supported: %s)", name, strings.Join(AllergenNames(), ", "))
	}
	return s.Update(func(p *model.UserProfile) error {
		switch name {
		case "peanut":
			p.Peanut = on
		case "tree_nut":
			p.TreeNut = on
		case "dairy":
			p.Dairy = on
		case "gluten":
			p.Gluten = on
		case "egg":
			p.Egg = on
		case "shellfish":
			p.Shellfish = on
		case "sesame":
			p.Sesame = on
		case "soy":
			p.Soy = on
		}
		return nil
	})
}

// SetSensitivity switches one sensitivity flag by its wire name.
func (s *MemoryStore) SetSensitivity(name string, on bool) error {
	name = normalizeName(name)
	if !sensitivityNames.Has(name) {
		return fmt.Errorf("unknown sensitivity %q (supported: %s)", name, strings.Join(SensitivityNames(), ", "))
	}
	return s.Update(func(p *model.UserProfile) error {
		switch name {
		case "avoid_artificial_colors":
			p.AvoidArtificialColors = on
		case "avoid_artificial_sweeteners":
			p.AvoidArtificialSweeteners = on
		case "avoid_ultra_processed":
			p.AvoidUltraProcessed = on
		case "caffeine_sensitive":
			p.CaffeineSensitive = on
		}
		return nil
	})
}

// AddFlag appends a free-text flag. Blank and duplicate flags are ignored.
func (s *MemoryStore) AddFlag(flag string) error {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return nil
	}
	return s.Update(func(p *model.UserProfile) error {
		if sets.New(p.Flags...).Has(flag) {
			return nil
		}
		p.Flags = append(p.Flags, flag)
		return nil
	})
}

func (s *MemoryStore) UpdateFlag(index int, value string) error {
	return s.Update(func(p *model.UserProfile) error {
		if index < 0 || index >= len(p.Flags) {
			return fmt.Errorf("flag index %d out of range (have %d)", index, len(p.Flags))
		}
		p.Flags[index] = strings.TrimSpace(value)
		return nil
	})
}

func (s *MemoryStore) RemoveFlag(index int) error {
	return s.Update(func(p *model.UserProfile) error {
		if index < 0 || index >= len(p.Flags) {
			return fmt.Errorf("flag index %d out of range (have %d)", index, len(p.Flags))
		}
		p.Flags = append(p.Flags[:index], p.Flags[index+1:]...)
		return nil
	})
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}
