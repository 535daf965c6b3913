package parser

import (
	"errors"
	"fmt"

	"github.com/helmcode/labellens/pkg/model"
)

// MessageUnreadable is what the view shows for any normalization failure.
const MessageUnreadable = "could not read results"

type ErrorKind string

const (
	KindUnreadableFormat ErrorKind = "unreadable_format"
	KindMissingField     ErrorKind = "missing_field"
	KindInvalidScore     ErrorKind = "invalid_score"
)

var (
	ErrUnreadableFormat = errors.New("unreadable analysis format")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidScore     = errors.New("invalid score")
)

// NormalizationError reports why a reply could not become an AnalysisResult.
// Audio is whatever side channel the reply carried, even though the analysis failed.
type NormalizationError struct {
	Kind   ErrorKind
	Field  string
	Detail string
	Audio  *model.Audio
}

func (e *NormalizationError) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case KindUnreadableFormat:
		msg = ErrUnreadableFormat.Error()
	case KindMissingField:
		msg = ErrMissingField.Error()
	case KindInvalidScore:
		msg = ErrInvalidScore.Error()
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *NormalizationError) Is(target error) bool {
	switch target {
	case ErrUnreadableFormat:
		return e.Kind == KindUnreadableFormat
	case ErrMissingField:
		return e.Kind == KindMissingField
	case ErrInvalidScore:
		return e.Kind == KindInvalidScore
	}
	return false
}

func unreadable(field, detail string) *NormalizationError {
	return &NormalizationError{Kind: KindUnreadableFormat, Field: field, Detail: detail}
}

func missing(field string) *NormalizationError {
	return &NormalizationError{Kind: KindMissingField, Field: field}
}

func invalidScore(detail string) *NormalizationError {
	return &NormalizationError{Kind: KindInvalidScore, Field: "score", Detail: detail}
}
