package speech

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is the catalog's first-class "no voice for this
// language/gender" outcome. Callers branch on it before invoking a provider.
var ErrNotConfigured = errors.New("speech: voice not configured")

type FailureKind string

const (
	FailureConfiguration       FailureKind = "configuration"
	FailureInvalidRequest      FailureKind = "invalid-request"
	FailureUnknownEngine       FailureKind = "unknown-engine"
	FailureUnsupportedLanguage FailureKind = "unsupported-language"
	FailureUpstream            FailureKind = "upstream"
	FailureQuota               FailureKind = "upstream-quota"
	FailureInternal            FailureKind = "internal-consistency"
)

// Failure is the typed error every provider-level problem is converted into
// at the router boundary. The message is user-visible and must name the
// missing credential, binary or language rather than being generic.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if f.Err != nil {
		return fmt.Sprintf("speech: %s: %v", f.Message, f.Err)
	}
	return "speech: " + f.Message
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

func newFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func configurationError(format string, args ...any) *Failure {
	return newFailure(FailureConfiguration, format, args...)
}

func upstreamError(err error, format string, args ...any) *Failure {
	return &Failure{Kind: FailureUpstream, Message: fmt.Sprintf(format, args...), Err: err}
}

// asFailure converts an arbitrary provider error into a *Failure. Errors that
// are not already typed are classified as upstream failures.
func asFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	return &Failure{Kind: FailureUpstream, Message: err.Error(), Err: err}
}
