package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// ErrorKind classifies an AppError so transports can map it (e.g. to an HTTP status).
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalid
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

// AppError is a domain error with a stable machine readable Code.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  map[string]interface{}
}

func NewAppError(kind ErrorKind, code, msg string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: msg}
}

func (err *AppError) Error() string {
	return err.Message
}

// Is reports whether target is an AppError with the same Code.
func (err *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == err.Code
}

// WithFields returns a copy of err carrying the given fields.
func (err *AppError) WithFields(fields map[string]interface{}) *AppError {
	cp := *err
	cp.Fields = fields
	return &cp
}

// WithMessage returns a copy of err with a more specific message.
func (err *AppError) WithMessage(msg string) *AppError {
	cp := *err
	cp.Message = msg
	return &cp
}

// IsAppError reports whether err (or its cause) is an AppError with the same code as target.
func IsAppError(err error, target *AppError) bool {
	return errors.Is(err, target)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
