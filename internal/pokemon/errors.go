package pokemon

import "errors"

// Kind classifies a use-case failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindUnexpected Kind = "unexpected"
)

// AppError is the only error type the use cases return.
type AppError struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, if any
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Err }

func validation(msg string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg}
}

func notFound(msg string, cause error) *AppError {
	return &AppError{Kind: KindNotFound, Message: msg, Err: cause}
}

func unexpected(cause error) *AppError {
	msg := "Unknown error occurred"
	if cause != nil {
		msg = cause.Error()
	}
	return &AppError{Kind: KindUnexpected, Message: msg, Err: cause}
}

// AsAppError extracts an *AppError from err. Any other non-nil error is
// reported as unexpected.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return unexpected(err)
}

// IsKind reports whether err is an *AppError of kind k.
func IsKind(err error, k Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == k
}
