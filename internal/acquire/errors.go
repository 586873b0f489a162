package acquire

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrProvider   = errors.New("provider error")
	ErrDownload   = errors.New("download error")
	ErrDecode     = errors.New("decode error")
)

// Error tags a failure with the acquisition step that produced it. Both the
// kind and the underlying error match errors.Is.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func wrap(kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Outcome names the result of an acquisition for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrDownload):
		return "download"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "error"
	}
}
