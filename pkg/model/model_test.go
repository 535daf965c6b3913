package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLens(t *testing.T) {
	for in, want := range map[string]Lens{
		"focus":      LensFocus,
		"REAL_FOOD":  LensRealFood,
		" personal ": LensPersonal,
	} {
		got, err := ParseLens(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseLens("sugar")
	assert.Error(t, err)
	assert.False(t, Lens("FOCUS").Valid())
	assert.True(t, LensFocus.Valid())
}

func TestNewAnalysisRequest_Copies(t *testing.T) {
	img := []byte{1, 2, 3}
	profile := DefaultProfile()
	profile.Flags = []string{"no pork"}

	req := NewAnalysisRequest(img, "", LensPersonal, profile)
	img[0] = 9
	profile.Flags[0] = "changed"

	assert.Equal(t, []byte{1, 2, 3}, req.Image)
	assert.Equal(t, []string{"no pork"}, req.Profile.Flags)
	assert.Equal(t, "capture.jpg", req.Filename)
}

func TestComposition(t *testing.T) {
	b := Breakdown{
		Positive: []string{"oats", "almonds"},
		Negative: []string{"sugar"},
		Mixed:    []string{},
		Neutral:  []string{"salt"},
	}
	c := b.Composition()
	assert.Equal(t, Composition{Positive: 2, Negative: 1, Mixed: 0, Neutral: 1, Total: 4}, c)
	assert.InDelta(t, 0.5, c.Ratio(c.Positive), 1e-9)
	assert.Zero(t, Breakdown{}.Composition().Ratio(0))
}

func TestPipelineStates(t *testing.T) {
	assert.False(t, IdleState().Settled())
	assert.False(t, LoadingState(1).Settled())
	assert.True(t, ErrorState(1, "could not read results").Settled())

	a := Analysis{Result: AnalysisResult{Lens: LensFocus, Score: 40}}
	ready := ReadyState(2, a)
	assert.True(t, ready.Settled())
	a.Result.Score = 90
	assert.Equal(t, 40, ready.Result.Score)
}

func TestUserProfile(t *testing.T) {
	p := DefaultProfile()
	require.NoError(t, p.Validate())
	assert.Empty(t, p.Allergens())

	p.Peanut, p.Soy, p.CaffeineSensitive = true, true, true
	assert.Equal(t, []string{"peanut", "soy"}, p.Allergens())
	assert.Equal(t, []string{"caffeine_sensitive"}, p.Sensitivities())

	p.Goal = "bulk"
	assert.Error(t, p.Validate())
	p.Goal, p.Diet = GoalLoss, "Keto"
	assert.Error(t, p.Validate())
}
