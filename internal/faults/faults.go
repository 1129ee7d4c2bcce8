// Package faults defines the error taxonomy shared across the pipeline.
//
// Errors are tagged with a Kind at the point they are raised or wrapped, so
// recovery policy is decided by tag rather than by matching substrings of
// vendor messages. The keyword classifier in classify.go exists only for
// errors that arrive from third-party SDKs without a tag.
package faults

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for recovery-policy decisions.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindRateLimit       Kind = "rate-limit"
	KindAuth            Kind = "auth"
	KindValidation      Kind = "validation"
	KindTimeout         Kind = "timeout"
	KindQuotaExceeded   Kind = "quota-exceeded"
	KindCaptchaRequired Kind = "captcha-required"
	KindNotImplemented  Kind = "not-implemented"
	KindCircuitOpen     Kind = "circuit-open"
	KindUnknown         Kind = "unknown"
)

// Fault is an error carrying a Kind tag. It wraps an optional cause.
type Fault struct {
	Kind  Kind
	Op    string
	Cause error
	msg   string
}

// New creates a tagged error with a message.
func New(kind Kind, op, msg string) *Fault {
	return &Fault{Kind: kind, Op: op, msg: msg}
}

// Newf creates a tagged error with a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Op: op, msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error. A nil cause returns nil.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Fault{Kind: kind, Op: op, Cause: cause}
}

// NotImplemented marks a declared stub. Callers must treat it as a real
// failure, never as a success-shaped default.
func NotImplemented(op string) *Fault {
	return &Fault{Kind: KindNotImplemented, Op: op, msg: "not implemented"}
}

func (f *Fault) Error() string {
	switch {
	case f.Cause != nil && f.Op != "":
		return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Cause)
	case f.Cause != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	case f.Op != "":
		return fmt.Sprintf("%s: %s: %s", f.Op, f.Kind, f.msg)
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.msg)
	}
}

// Unwrap exposes the cause for errors.Is/As chains.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// Is matches two faults by Kind, so errors.Is(err, &Fault{Kind: k}) and
// sentinel comparisons against kind markers work through wrap chains.
func (f *Fault) Is(target error) bool {
	var t *Fault
	if !errors.As(target, &t) {
		return false
	}
	return f.Kind == t.Kind
}

// KindOf returns the Kind of the outermost tagged error in err's chain.
// Untagged errors classify as KindUnknown; use Classify for vendor errors.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var f *Fault
	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.As(e, &f) && f.Kind == kind {
			return true
		}
	}
	return false
}

// Retryable reports whether the recovery policy for err's kind permits a
// retry: transient transport and timing failures do, everything else fails
// fast or waits for an external event.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return true
	case KindRateLimit, KindQuotaExceeded:
		// Retried only after the limiting window resets; the governor owns
		// that wait, so from a call site's view these are not retryable.
		return false
	default:
		return false
	}
}

// Critical reports whether err must be surfaced immediately without retry.
func Critical(err error) bool {
	return KindOf(err) == KindAuth
}
