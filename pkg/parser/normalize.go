package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/helmcode/labellens/pkg/model"
)

// Breakdown keys in the order they are tried. The service renamed these
// buckets over time; older replies used helpful/concerning.
var (
	positiveKeys = []string{"positive_for_lens", "positive", "helpful"}
	negativeKeys = []string{"negative_for_lens", "negative", "concerning"}
	mixedKeys    = []string{"mixed_for_lens", "mixed"}
	neutralKeys  = []string{"neutral_for_lens", "neutral"}
)

// Normalize converts a raw service reply into a typed analysis for lens.
//
// It has no side effects: the same reply and lens always produce the same
// value. On failure the returned error is a *NormalizationError that still
// carries the reply's audio, if any.
func Normalize(raw model.RawServiceReply, lens model.Lens) (*model.Analysis, error) {
	audio := extractAudio(raw)

	result, err := normalizeResult(raw.HealthAnalysis, lens)
	if err != nil {
		err.Audio = audio
		return nil, err
	}
	return &model.Analysis{Result: *result, Audio: audio}, nil
}

func normalizeResult(raw json.RawMessage, lens model.Lens) (*model.AnalysisResult, *NormalizationError) {
	if !lens.Valid() {
		return nil, unreadable("lens", fmt.Sprintf("unknown lens %q", lens))
	}

	obj, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	for _, field := range []string{"score", "reasons", "ingredients_breakdown"} {
		if v, ok := obj[field]; !ok || v == nil {
			return nil, missing(field)
		}
	}

	score, nerr := coerceScore(obj["score"])
	if nerr != nil {
		return nil, nerr
	}

	reasons, ok := obj["reasons"].(map[string]any)
	if !ok {
		return nil, unreadable("reasons", fmt.Sprintf("got %s, want object", kindOf(obj["reasons"])))
	}
	breakdown, ok := obj["ingredients_breakdown"].(map[string]any)
	if !ok {
		return nil, unreadable("ingredients_breakdown", fmt.Sprintf("got %s, want object", kindOf(obj["ingredients_breakdown"])))
	}

	headline, _ := obj["lens"].(string)

	return &model.AnalysisResult{
		Lens:     lens,
		Headline: strings.TrimSpace(headline),
		Score:    score,
		Reasons: model.Reasons{
			Positives: stringList(reasons["positives"]),
			Concerns:  stringList(reasons["concerns"]),
		},
		Breakdown: model.Breakdown{
			Positive: firstList(breakdown, positiveKeys),
			Negative: firstList(breakdown, negativeKeys),
			Mixed:    firstList(breakdown, mixedKeys),
			Neutral:  firstList(breakdown, neutralKeys),
		},
		LabLabels: labLabels(obj["lab_labels"], lens),
		Notes:     optionalList(obj["notes"]),
	}, nil
}

// coerceScore accepts a JSON integer, an integral float, or a string holding
// an integer. Anything else, or anything outside [0,100], is rejected.
func coerceScore(v any) (int, *NormalizationError) {
	var n float64
	switch s := v.(type) {
	case json.Number:
		if i, err := s.Int64(); err == nil {
			n = float64(i)
		} else if f, err := s.Float64(); err == nil {
			n = f
		} else {
			return 0, invalidScore(fmt.Sprintf("%q is not a number", s.String()))
		}
	case float64:
		n = s
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, invalidScore(fmt.Sprintf("%q is not an integer", s))
		}
		n = float64(i)
	default:
		return 0, invalidScore(fmt.Sprintf("got %s, want integer", kindOf(v)))
	}

	if n != math.Trunc(n) {
		return 0, invalidScore(fmt.Sprintf("%v is not an integer", n))
	}
	if n < 0 || n > 100 {
		return 0, invalidScore(fmt.Sprintf("%v is outside 0-100", n))
	}
	return int(n), nil
}

func labLabels(v any, lens model.Lens) []model.LabLabel {
	out := []model.LabLabel{}
	entries, ok := v.([]any)
	if !ok {
		return out
	}

	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		label := model.LabLabel{
			Ingredient:        stringField(m, "ingredient"),
			PlainEnglish:      stringField(m, "plain_english"),
			WhyAdded:          stringField(m, "why_added"),
			PersonalRelevance: stringField(m, "personal_relevance"),
			FocusRelevance:    stringField(m, "focus_relevance"),
			CommonIn:          optionalList(m["common_in"]),
		}
		if label.Ingredient == "" {
			continue
		}
		if lens == model.LensPersonal {
			if label.PersonalRelevance == "" {
				continue
			}
		} else if label.WhyAdded == "" {
			continue
		}
		out = append(out, label)
	}
	return out
}

func firstList(m map[string]any, keys []string) []string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return stringList(v)
		}
	}
	return []string{}
}

// stringList keeps the string entries of a JSON array, never returning nil.
func stringList(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func optionalList(v any) []string {
	if l := stringList(v); len(l) > 0 {
		return l
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func extractAudio(raw model.RawServiceReply) *model.Audio {
	var a model.Audio
	if raw.AudioBase64 != nil {
		a.Base64 = strings.TrimSpace(*raw.AudioBase64)
	}
	if raw.NarrativeText != nil {
		a.Narrative = strings.TrimSpace(*raw.NarrativeText)
	}
	if a.Base64 == "" && a.Narrative == "" {
		return nil
	}
	return &a
}
