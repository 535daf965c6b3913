package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/helmcode/labellens/pkg/model"
)

var (
	openFenceRe  = regexp.MustCompile("^\\s*```[A-Za-z]*\\s*")
	closeFenceRe = regexp.MustCompile("\\s*```\\s*$")
)

// stripFences removes a markdown code fence wrapping the whole text, such as
// ```json ... ```. Backticks inside the JSON are left alone.
func stripFences(text string) string {
	text = openFenceRe.ReplaceAllString(text, "")
	return strings.TrimSpace(closeFenceRe.ReplaceAllString(text, ""))
}

// decodeText decodes text as is and falls back to fence stripping only when
// that fails.
func decodeText(text string) (any, error) {
	v, err := decodeStrict(text)
	if err == nil {
		return v, nil
	}
	if stripped := stripFences(text); stripped != strings.TrimSpace(text) {
		return decodeStrict(stripped)
	}
	return nil, err
}

// decodePayload turns the health_analysis field into a JSON object.
//
// A string is decoded strictly, with a wrapping code fence removed if present;
// an object is used as is.
// A string that decodes to another string is unwrapped once more, which covers
// replies that were encoded twice on the way out of the service.
func decodePayload(raw json.RawMessage) (map[string]any, *NormalizationError) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, missing("health_analysis")
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, unreadable("health_analysis", err.Error())
		}
		v, err := decodeText(text)
		if err != nil {
			return nil, unreadable("health_analysis", err.Error())
		}
		if inner, ok := v.(string); ok {
			if v, err = decodeText(inner); err != nil {
				return nil, unreadable("health_analysis", err.Error())
			}
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, unreadable("health_analysis", fmt.Sprintf("decoded to %s, want object", kindOf(v)))
		}
		return obj, nil

	case '{':
		v, err := decodeStrict(string(trimmed))
		if err != nil {
			return nil, unreadable("health_analysis", err.Error())
		}
		return v.(map[string]any), nil

	default:
		var v any
		_ = json.Unmarshal(trimmed, &v)
		return nil, unreadable("health_analysis", fmt.Sprintf("got %s, want string or object", kindOf(v)))
	}
}

// decodeStrict decodes exactly one JSON value and rejects trailing data.
// Numbers are kept as json.Number so scores are not rounded through float64.
func decodeStrict(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

type wireReply struct {
	HealthAnalysis json.RawMessage `json:"health_analysis"`
	AudioBase64    json.RawMessage `json:"audio_base64"`
	NarrativeText  json.RawMessage `json:"narrative_text"`
}

// DecodeReply parses the service's response body into a RawServiceReply.
// The analysis payload inside it is left undecoded for Normalize. Side channel
// fields that are not strings are dropped so they never block the analysis.
func DecodeReply(body []byte) (*model.RawServiceReply, error) {
	var wire wireReply
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, unreadable("reply", err.Error())
	}
	return &model.RawServiceReply{
		HealthAnalysis: wire.HealthAnalysis,
		AudioBase64:    optionalString(wire.AudioBase64),
		NarrativeText:  optionalString(wire.NarrativeText),
	}, nil
}

func optionalString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return nil
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return &s
}
