package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Lens selects which scoring logic the analysis service runs.
type Lens string

const (
	LensFocus    Lens = "focus"
	LensRealFood Lens = "real_food"
	LensPersonal Lens = "personal"
)

// AllLenses returns every lens in display order.
func AllLenses() []Lens {
	return []Lens{LensRealFood, LensFocus, LensPersonal}
}

// ParseLens validates a lens tag.
func ParseLens(s string) (Lens, error) {
	switch l := Lens(strings.ToLower(strings.TrimSpace(s))); l {
	case LensFocus, LensRealFood, LensPersonal:
		return l, nil
	default:
		return "", fmt.Errorf("unknown lens %q (supported: focus, real_food, personal)", s)
	}
}

// Valid reports whether l is one of the known lens tags, exactly as spelled.
func (l Lens) Valid() bool {
	switch l {
	case LensFocus, LensRealFood, LensPersonal:
		return true
	}
	return false
}

// Title is the heading shown above a result card.
func (l Lens) Title() string {
	switch l {
	case LensFocus:
		return "Focus Score"
	case LensRealFood:
		return "Real Food Score"
	case LensPersonal:
		return "Personal Fit Score"
	default:
		return string(l)
	}
}

// AnalysisRequest is one upload: the captured image, the lens and a profile snapshot.
// Build it with NewAnalysisRequest; it is never mutated afterwards.
type AnalysisRequest struct {
	Image    []byte
	Filename string
	Lens     Lens
	Profile  UserProfile
}

func NewAnalysisRequest(image []byte, filename string, lens Lens, profile UserProfile) AnalysisRequest {
	img := make([]byte, len(image))
	copy(img, image)
	if filename == "" {
		filename = "capture.jpg"
	}
	return AnalysisRequest{
		Image:    img,
		Filename: filename,
		Lens:     lens,
		Profile:  profile.Clone(),
	}
}

// RawServiceReply is the undecoded body returned by the analysis service.
// HealthAnalysis is either a JSON string holding the analysis or the analysis object itself.
type RawServiceReply struct {
	HealthAnalysis json.RawMessage `json:"health_analysis"`
	AudioBase64    *string         `json:"audio_base64,omitempty"`
	NarrativeText  *string         `json:"narrative_text,omitempty"`
}

// Audio is the spoken summary attached to a reply, independent of the analysis payload.
type Audio struct {
	Base64    string `json:"base64,omitempty" yaml:"base64,omitempty"`
	Narrative string `json:"narrative,omitempty" yaml:"narrative,omitempty"`
}

type Reasons struct {
	Positives []string `json:"positives" yaml:"positives"`
	Concerns  []string `json:"concerns" yaml:"concerns"`
}

type Breakdown struct {
	Positive []string `json:"positive" yaml:"positive"`
	Negative []string `json:"negative" yaml:"negative"`
	Mixed    []string `json:"mixed" yaml:"mixed"`
	Neutral  []string `json:"neutral" yaml:"neutral"`
}

// LabLabel explains one supplementary ingredient. Personal results carry
// PersonalRelevance, the other lenses carry WhyAdded.
type LabLabel struct {
	Ingredient        string   `json:"ingredient" yaml:"ingredient"`
	PlainEnglish      string   `json:"plainEnglish,omitempty" yaml:"plain_english,omitempty"`
	WhyAdded          string   `json:"whyAdded,omitempty" yaml:"why_added,omitempty"`
	PersonalRelevance string   `json:"personalRelevance,omitempty" yaml:"personal_relevance,omitempty"`
	FocusRelevance    string   `json:"focusRelevance,omitempty" yaml:"focus_relevance,omitempty"`
	CommonIn          []string `json:"commonIn,omitempty" yaml:"common_in,omitempty"`
}

// AnalysisResult is a normalized analysis for one lens. Score is in [0,100]:
// a health rating for focus and real_food, a compatibility percentage for personal.
type AnalysisResult struct {
	Lens      Lens       `json:"lens" yaml:"lens"`
	Headline  string     `json:"headline,omitempty" yaml:"headline,omitempty"`
	Score     int        `json:"score" yaml:"score"`
	Reasons   Reasons    `json:"reasons" yaml:"reasons"`
	Breakdown Breakdown  `json:"breakdown" yaml:"breakdown"`
	LabLabels []LabLabel `json:"labLabels" yaml:"lab_labels"`
	Notes     []string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Analysis pairs a normalized result with the reply's audio side channel.
type Analysis struct {
	Result AnalysisResult
	Audio  *Audio
}

// Composition is the ingredient count per breakdown bucket.
type Composition struct {
	Positive int `json:"positive" yaml:"positive"`
	Negative int `json:"negative" yaml:"negative"`
	Mixed    int `json:"mixed" yaml:"mixed"`
	Neutral  int `json:"neutral" yaml:"neutral"`
	Total    int `json:"total" yaml:"total"`
}

// Composition derives the bar shown above the breakdown from the bucket sizes.
func (b Breakdown) Composition() Composition {
	c := Composition{
		Positive: len(b.Positive),
		Negative: len(b.Negative),
		Mixed:    len(b.Mixed),
		Neutral:  len(b.Neutral),
	}
	c.Total = c.Positive + c.Negative + c.Mixed + c.Neutral
	return c
}

// Ratio returns n as a share of the total, 0 when the breakdown is empty.
func (c Composition) Ratio(n int) float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(n) / float64(c.Total)
}
