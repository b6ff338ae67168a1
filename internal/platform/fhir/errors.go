package fhir

import (
	"errors"
	"net/http"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// ErrorKind classifies an Error.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not-found"
	KindGeneric        ErrorKind = "error"
)

// Error is the single error type returned across the client and service
// boundaries. Detail optionally carries a structured payload, usually an
// *OperationOutcome from the server or the list of validation issues.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Detail     interface{}
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidationError(msg string, detail interface{}) *Error {
	return &Error{Kind: KindValidation, Message: msg, StatusCode: http.StatusBadRequest, Detail: detail}
}

func NewAuthenticationError(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg, StatusCode: http.StatusUnauthorized}
}

func NewAuthorizationError(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg, StatusCode: http.StatusForbidden}
}

func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg, StatusCode: http.StatusNotFound}
}

// Wrap returns a generic Error around err. A zero status becomes 500.
func Wrap(err error, status int, msg string) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: KindGeneric, Message: msg, StatusCode: status, Err: err}
}

// FromStatus classifies a protocol status code into the taxonomy.
func FromStatus(status int, msg string, detail interface{}) *Error {
	var e *Error
	switch status {
	case http.StatusBadRequest:
		e = NewValidationError(msg, detail)
	case http.StatusUnauthorized:
		e = NewAuthenticationError(msg)
	case http.StatusForbidden:
		e = NewAuthorizationError(msg)
	case http.StatusNotFound:
		e = NewNotFoundError(msg)
	default:
		e = Wrap(nil, status, msg)
	}
	e.Detail = detail
	return e
}

// FromValidation turns a resource validation failure into a ValidationError
// listing each issue. Other errors are normalized with AsError.
func FromValidation(err error) *Error {
	var invalid *fhirmodels.InvalidResourceError
	if errors.As(err, &invalid) {
		e := NewValidationError(err.Error(), invalid.Issues)
		e.Err = err
		return e
	}
	return AsError(err)
}

// AsError returns err as an *Error. Errors that are not already typed become
// generic 500s.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, http.StatusInternalServerError, "internal error")
}

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsNotFound(err error) bool      { return isKind(err, KindNotFound) }
func IsValidation(err error) bool    { return isKind(err, KindValidation) }
func IsAuthorization(err error) bool { return isKind(err, KindAuthorization) }

// StatusCode returns the status carried by err, or 500 for untyped errors.
func StatusCode(err error) int {
	return AsError(err).StatusCode
}

// Outcome renders the error as an OperationOutcome. A server-supplied
// outcome in Detail is returned as is.
func (e *Error) Outcome() *OperationOutcome {
	switch d := e.Detail.(type) {
	case *OperationOutcome:
		if d != nil && len(d.Issue) > 0 {
			return d
		}
	case []string:
		if len(d) > 0 {
			return MultipleIssuesOutcome(IssueTypeInvalid, d)
		}
	}
	switch e.Kind {
	case KindValidation:
		return NewOperationOutcome(IssueSeverityError, IssueTypeInvalid, e.Message)
	case KindAuthentication:
		return NewOperationOutcome(IssueSeverityError, IssueTypeLogin, e.Message)
	case KindAuthorization:
		return NewOperationOutcome(IssueSeverityError, IssueTypeForbidden, e.Message)
	case KindNotFound:
		return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, e.Message)
	}
	if e.StatusCode >= http.StatusInternalServerError {
		return InternalErrorOutcome(e.Message)
	}
	return ErrorOutcome(e.Message)
}
