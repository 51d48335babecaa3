package errors

import (
	"fmt"
	"strings"
)

// Code is the outcome of a cross-domain operation. The codes are mutually
// exclusive; CodeNoError is the zero value and never appears on a returned
// error.
type Code string

const (
	CodeNoError        Code = ""
	CodeUncaught       Code = "uncaught_exception" // arbitrary domain-local failure, proxied
	CodeNotShareable   Code = "not_shareable"      // no conversion registered, or conversion refused
	CodeNoMemory       Code = "no_memory"
	CodeAlreadyRunning Code = "already_running" // target's main namespace already claimed
	CodeMainNamespace  Code = "main_ns_failure" // could not obtain target's top-level bindings
	CodeApplyNamespace Code = "apply_ns_failure"
	CodeOther          Code = "other"
)

// Kind categorizes the error more finely than its outcome code.
type Kind string

const (
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindRegistration   Kind = "registration"
	KindOverflow       Kind = "overflow"
	KindLeaked         Kind = "leaked"
	KindConversion     Kind = "conversion"
	KindConsumed       Kind = "consumed"
)

// Error is the structured error type used throughout the library.
type Error struct {
	Cause  error
	Code   Code
	Kind   Kind
	Type   string // originating failure's type name, when proxying
	Domain int64  // originating domain id, 0 when unknown
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Code != CodeNoError {
		b.WriteByte('[')
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	if e.Kind != "" {
		b.WriteString(string(e.Kind))
	}
	if e.Type != "" {
		if e.Kind != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Type)
	}
	if e.Detail != "" {
		if e.Kind != "" || e.Type != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}
	if e.Domain != 0 {
		fmt.Fprintf(&b, " (domain %d)", e.Domain)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	if b.Len() == 0 {
		return "unknown error"
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two Errors match when their
// codes are equal and the target's kind is either empty or equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code != t.Code {
		return false
	}
	return t.Kind == "" || e.Kind == t.Kind
}

// HasCode reports whether err is an *Error carrying the given outcome code.
func HasCode(err error, code Code) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Code == code
}

// Convenience constructors for common error patterns

// NotShareable reports that a value could not cross a domain boundary.
func NotShareable(detail string) *Error {
	if detail == "" {
		detail = "value does not support cross-domain sharing"
	}
	return &Error{
		Code:   CodeNotShareable,
		Kind:   KindNotFound,
		Detail: detail,
	}
}

// NotShareableType reports that no conversion is registered for typeName.
func NotShareableType(typeName string, domainID int64) *Error {
	return &Error{
		Code:   CodeNotShareable,
		Kind:   KindNotFound,
		Type:   typeName,
		Domain: domainID,
		Detail: "type does not support cross-domain sharing",
	}
}

// Overflow reports a value outside the shareable range.
func Overflow(detail string) *Error {
	return &Error{
		Code:   CodeOther,
		Kind:   KindOverflow,
		Detail: detail,
	}
}

// InvalidInput reports malformed input to a boundary operation.
func InvalidInput(detail string) *Error {
	return &Error{
		Code:   CodeOther,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotInitialized reports use of a component before its init hook ran.
func NotInitialized(component string) *Error {
	return &Error{
		Code:   CodeOther,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Registration reports a failed registry operation.
func Registration(detail string, cause error) *Error {
	return &Error{
		Code:   CodeOther,
		Kind:   KindRegistration,
		Detail: detail,
		Cause:  cause,
	}
}

// Conversion wraps a failure raised by a per-type conversion routine.
func Conversion(typeName string, cause error) *Error {
	return &Error{
		Code:  CodeNotShareable,
		Kind:  KindConversion,
		Type:  typeName,
		Cause: cause,
	}
}

// Leaked reports cross-domain data whose owning domain no longer exists.
// The loss is diagnosed, never recovered.
func Leaked(domainID int64, detail string) *Error {
	return &Error{
		Code:   CodeOther,
		Kind:   KindLeaked,
		Domain: domainID,
		Detail: detail,
	}
}

// AlreadyRunning reports that a domain's main namespace is claimed.
func AlreadyRunning(domainID int64) *Error {
	return &Error{
		Code:   CodeAlreadyRunning,
		Domain: domainID,
		Detail: "main namespace already claimed by another session",
	}
}

// Consumed reports a single-use resource that was already used.
func Consumed(what string) *Error {
	return &Error{
		Code:   CodeOther,
		Kind:   KindConsumed,
		Detail: fmt.Sprintf("%s already consumed", what),
	}
}

// FromCode builds the error corresponding to an outcome code, used when an
// exception envelope is replayed in another domain.
func FromCode(code Code, domainID int64) *Error {
	switch code {
	case CodeAlreadyRunning:
		return AlreadyRunning(domainID)
	case CodeMainNamespace:
		return &Error{
			Code:   CodeMainNamespace,
			Domain: domainID,
			Detail: "failed to get the domain's top-level namespace",
		}
	case CodeApplyNamespace:
		return &Error{
			Code:   CodeApplyNamespace,
			Domain: domainID,
			Detail: "failed to apply bindings to the top-level namespace",
		}
	case CodeNotShareable:
		return &Error{Code: CodeNotShareable, Domain: domainID}
	case CodeNoMemory:
		return &Error{Code: CodeNoMemory, Domain: domainID, Detail: "out of memory"}
	default:
		return &Error{Code: CodeOther, Domain: domainID}
	}
}
