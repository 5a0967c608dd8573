package domain

import (
	"errors"
	"fmt"
)

// Kind identifies a failure mode of the chat pipeline.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindValidation
	KindEmbedding
	KindStoreUnavailable
	KindTransient
	KindInvalidCredentials
	KindQuotaExceeded
	KindEmptyResponse
	KindNotFound
	KindPersistence
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindConfiguration:      "configuration",
	KindValidation:         "validation",
	KindEmbedding:          "embedding",
	KindStoreUnavailable:   "store unavailable",
	KindTransient:          "transient",
	KindInvalidCredentials: "invalid credentials",
	KindQuotaExceeded:      "quota exceeded",
	KindEmptyResponse:      "empty response",
	KindNotFound:           "not found",
	KindPersistence:        "persistence",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Class is the coarse error taxonomy the presentation layer reacts to.
type Class string

const (
	ClassConfiguration Class = "ConfigurationError"
	ClassTransient     Class = "TransientServiceError"
	ClassPermanent     Class = "PermanentServiceError"
	ClassDataIntegrity Class = "DataIntegrityError"
	ClassDegraded      Class = "DegradedModeCondition"
)

// Class maps the kind onto the error taxonomy.
func (k Kind) Class() Class {
	switch k {
	case KindConfiguration, KindValidation:
		return ClassConfiguration
	case KindInvalidCredentials, KindQuotaExceeded:
		return ClassPermanent
	case KindNotFound:
		return ClassDataIntegrity
	case KindStoreUnavailable:
		return ClassDegraded
	default:
		return ClassTransient
	}
}

// Retryable reports whether the caller may retry the failed operation automatically.
func (k Kind) Retryable() bool {
	return k.Class() == ClassTransient
}

// Error is the typed error returned across service boundaries.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. A nil err is allowed for conditions detected locally.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the kind of the outermost *Error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ClassOf returns the taxonomy class of err.
func ClassOf(err error) Class {
	return KindOf(err).Class()
}

// UserMessage renders err as actionable text for display. It never exposes raw
// transport errors.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindConfiguration:
		return "Configuration problem: " + causeText(err)
	case KindValidation:
		return causeText(err)
	case KindInvalidCredentials:
		return "Invalid API key. Please check your OpenAI API key."
	case KindQuotaExceeded:
		return "API quota exceeded. Please check your OpenAI account."
	case KindEmptyResponse:
		return "Failed to generate response. Please try again."
	case KindEmbedding:
		return "Failed to process your message. Please try again."
	case KindStoreUnavailable:
		return "Conversation memory is unavailable; answering without it."
	case KindNotFound:
		return "Conversation not found."
	case KindPersistence:
		return "Failed to save the conversation. You can retry saving."
	case KindTransient:
		return "The service is temporarily unavailable. Please try again."
	default:
		return "An unexpected error occurred: " + causeText(err)
	}
}

func causeText(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
