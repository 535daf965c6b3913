package model

import "fmt"

type Goal string

const (
	GoalGain Goal = "gain"
	GoalLoss Goal = "loss"
)

type Diet string

const (
	DietHalal      Diet = "Halal"
	DietVegetarian Diet = "Vegetarian"
	DietVegan      Diet = "Vegan"
)

// UserProfile is the flat record sent with personal-fit requests. Field names
// match what the analysis service expects in the user_profile form field.
type UserProfile struct {
	Goal Goal `json:"goal" yaml:"goal"`
	Diet Diet `json:"diet" yaml:"diet"`

	// Allergens
	Peanut    bool `json:"peanut" yaml:"peanut"`
	TreeNut   bool `json:"tree_nut" yaml:"tree_nut"`
	Dairy     bool `json:"dairy" yaml:"dairy"`
	Gluten    bool `json:"gluten" yaml:"gluten"`
	Egg       bool `json:"egg" yaml:"egg"`
	Shellfish bool `json:"shellfish" yaml:"shellfish"`
	Sesame    bool `json:"sesame" yaml:"sesame"`
	Soy       bool `json:"soy" yaml:"soy"`

	// Sensitivities
	AvoidArtificialColors     bool `json:"avoid_artificial_colors" yaml:"avoid_artificial_colors"`
	AvoidArtificialSweeteners bool `json:"avoid_artificial_sweeteners" yaml:"avoid_artificial_sweeteners"`
	AvoidUltraProcessed       bool `json:"avoid_ultra_processed" yaml:"avoid_ultra_processed"`
	CaffeineSensitive         bool `json:"caffeine_sensitive" yaml:"caffeine_sensitive"`

	Flags []string `json:"flags" yaml:"flags"`
}

func DefaultProfile() UserProfile {
	return UserProfile{
		Goal:  GoalGain,
		Diet:  DietHalal,
		Flags: []string{},
	}
}

// Clone returns a copy that shares no memory with p.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.Flags = make([]string, len(p.Flags))
	copy(out.Flags, p.Flags)
	return out
}

func (p UserProfile) Validate() error {
	switch p.Goal {
	case GoalGain, GoalLoss:
	default:
		return fmt.Errorf("invalid goal %q (supported: gain, loss)", p.Goal)
	}
	switch p.Diet {
	case DietHalal, DietVegetarian, DietVegan:
	default:
		return fmt.Errorf("invalid diet %q (supported: Halal, Vegetarian, Vegan)", p.Diet)
	}
	return nil
}

// Allergens lists the allergen names that are switched on.
func (p UserProfile) Allergens() []string {
	var out []string
	for _, a := range []struct {
		name string
		on   bool
	}{
		{"peanut", p.Peanut},
		{"tree_nut", p.TreeNut},
		{"dairy", p.Dairy},
		{"gluten", p.Gluten},
		{"egg", p.Egg},
		{"shellfish", p.Shellfish},
		{"sesame", p.Sesame},
		{"soy", p.Soy},
	} {
		if a.on {
			out = append(out, a.name)
		}
	}
	return out
}

// Sensitivities lists the sensitivity flags that are switched on.
func (p UserProfile) Sensitivities() []string {
	var out []string
	for _, s := range []struct {
		name string
		on   bool
	}{
		{"avoid_artificial_colors", p.AvoidArtificialColors},
		{"avoid_artificial_sweeteners", p.AvoidArtificialSweeteners},
		{"avoid_ultra_processed", p.AvoidUltraProcessed},
		{"caffeine_sensitive", p.CaffeineSensitive},
	} {
		if s.on {
			out = append(out, s.name)
		}
	}
	return out
}
