package receipt

import "errors"

// Kind is a stable category for programmatic error handling. Callers branch
// on Kind/RuleID, never on message strings.
type Kind string

const (
	KindParse      Kind = "Parse"
	KindCanonical  Kind = "Canonical"
	KindValidation Kind = "Validation"
	KindRender     Kind = "Render"
	KindCrypto     Kind = "Crypto"
)

// Error is the package's structured error type. RuleID names the violated
// rule (e.g., CERT-CANON-003); Message is for humans.
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

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
