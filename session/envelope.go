package session

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
)

// Envelope is a rendered snapshot of a failure captured in one domain, safe
// to carry into another. TypeName and Message are owned copies; they are
// empty when the outcome code alone describes the failure (AlreadyRunning
// captures no detail).
type Envelope struct {
	Code     errors.Code
	TypeName string
	Message  string
	Origin   domain.ID
}

// FailureTyped lets host failure values report the type name recorded in an
// envelope. Failures without it are named by their Go type.
type FailureTyped interface {
	FailureType() string
}

// ProxyError re-raises a captured domain-local failure in another domain.
// It renders the original failure's type name and message; the original
// value itself never crosses the boundary.
type ProxyError struct {
	TypeName string
	Message  string
	Origin   domain.ID
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.TypeName == "" {
		return fmt.Sprintf("domain %d failed: %s", e.Origin, e.Message)
	}
	return fmt.Sprintf("domain %d failed: %s: %s", e.Origin, e.TypeName, e.Message)
}

// Wrapper builds the caller-domain error for a consumed envelope. base is
// the default rendering ApplyCaptured would otherwise return.
type Wrapper func(env *Envelope, base error) error

// capture renders err into an envelope. It never panics: if rendering the
// type name or message blows up, the envelope degrades to a detail-free
// CodeOther and the rendering failure is reported to the log only.
func capture(code errors.Code, origin domain.ID, err error) (env *Envelope) {
	env = &Envelope{Code: code, Origin: origin}
	if err == nil {
		return env
	}

	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("failure rendering panicked during capture",
				zap.Int64("domain", int64(origin)),
				zap.Any("panic", r))
			env = &Envelope{Code: errors.CodeOther, Origin: origin}
		}
	}()

	env.TypeName = failureTypeName(err)
	env.Message = err.Error()
	return env
}

func failureTypeName(err error) string {
	if ft, ok := err.(FailureTyped); ok {
		return ft.FailureType()
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// apply turns a consumed envelope into the caller-domain error. An uncaught
// failure becomes a ProxyError directly; any other code becomes its
// structured error, with the accompanying failure detail (when one was
// captured) chained as the cause.
func (env *Envelope) apply() error {
	if env.Code == errors.CodeUncaught {
		return &ProxyError{
			TypeName: env.TypeName,
			Message:  env.Message,
			Origin:   env.Origin,
		}
	}

	e := errors.FromCode(env.Code, int64(env.Origin))
	if env.TypeName != "" || env.Message != "" {
		e.Cause = &ProxyError{
			TypeName: env.TypeName,
			Message:  env.Message,
			Origin:   env.Origin,
		}
	}
	return e
}
