package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is returned once every attempt failed transiently.
	ErrExhausted = errors.New("retries exhausted")
	// ErrNotConfigured marks an upstream whose credential is missing or a placeholder.
	ErrNotConfigured = errors.New("upstream credential not configured")
)

// TransientError is a failure worth retrying: throttling, server errors,
// network failures or an HTML error page in place of data.
type TransientError struct {
	Status int
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	msg := "transient upstream failure: " + e.Reason
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransientError) Unwrap() error { return e.Err }

// Logical error kinds.
const (
	KindStatus     = "status"
	KindParse      = "parse"
	KindResultCode = "result_code"
)

// LogicalError is a definitive failure. Retrying will not change the answer.
type LogicalError struct {
	Kind    string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *LogicalError) Error() string {
	switch e.Kind {
	case KindResultCode:
		return fmt.Sprintf("upstream result code %s: %s", e.Code, e.Message)
	case KindParse:
		return fmt.Sprintf("decode upstream response: %v", e.Err)
	default:
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
}

func (e *LogicalError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsLogical reports whether err carries a LogicalError.
func IsLogical(err error) bool {
	var le *LogicalError
	return errors.As(err, &le)
}
