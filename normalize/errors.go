package normalize

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// A KindParse error is the fallback signal: the file could not be parsed for
// its declared kind and must be fingerprinted from raw bytes instead.
type Kind string

const (
	KindParse    Kind = "Parse"
	KindEncode   Kind = "Encode"
	KindInternal Kind = "Internal"
)

// Error is the package's structured error type.
//
// RuleID is a stable identifier (e.g., NORM-PY-003) naming the violated rule.
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsParseError reports whether err is (or wraps) a *Error with KindParse.
// Fingerprinting treats parse errors as the raw-hash fallback signal, never
// as a fatal pipeline error.
func IsParseError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindParse
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
