// Package failure defines the stage-identifying error kinds shared by every
// pipeline stage. A stage wraps library failures with its kind and keeps the
// original cause reachable through errors.Unwrap.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies the pipeline stage that failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindIngestion
	KindPreprocess
	KindBalance
	KindFeatureSelection
	KindTraining
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindIngestion:
		return "IngestionError"
	case KindPreprocess:
		return "PreprocessError"
	case KindBalance:
		return "BalanceError"
	case KindFeatureSelection:
		return "FeatureSelectionError"
	case KindTraining:
		return "TrainingError"
	case KindPersistence:
		return "PersistenceError"
	default:
		return "UnknownError"
	}
}

// Sentinels usable with errors.Is, e.g. errors.Is(err, failure.ErrBalance).
var (
	ErrConfig           = &Error{Kind: KindConfig}
	ErrIngestion        = &Error{Kind: KindIngestion}
	ErrPreprocess       = &Error{Kind: KindPreprocess}
	ErrBalance          = &Error{Kind: KindBalance}
	ErrFeatureSelection = &Error{Kind: KindFeatureSelection}
	ErrTraining         = &Error{Kind: KindTraining}
	ErrPersistence      = &Error{Kind: KindPersistence}
)

// Error is a stage failure with its cause attached.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Wrap attaches kind and op to err. An err that already carries a stage kind
// keeps it; only the op is prefixed, so the innermost stage decides the kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		if op == "" {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a new stage error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the stage kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
