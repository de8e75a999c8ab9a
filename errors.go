package tether

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danpasecinic/tether/internal/activation"
	"github.com/danpasecinic/tether/internal/container"
	"github.com/danpasecinic/tether/internal/declaration"
	"github.com/danpasecinic/tether/internal/scopecache"
	"github.com/danpasecinic/tether/internal/weakref"
)

type ErrorCode uint16

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeServiceNotFound
	ErrCodeCircularDependency
	ErrCodeDuplicateService
	ErrCodeResolutionFailed
	ErrCodeProviderFailed
	ErrCodeStartupFailed
	ErrCodeShutdownFailed
	ErrCodeScopeNotFound
	ErrCodeValidationFailed
	ErrCodeTimeout
	ErrCodeContainerAlreadyStarted
	ErrCodeDecoratorFailed
	ErrCodeModuleApplyFailed
	ErrCodeModuleInvalidProvider
	ErrCodeUnsatisfiableDependency
	ErrCodeTypeMismatch
	ErrCodeCreatorUnavailable
	ErrCodeMissingCreatorContext
	ErrCodeInvalidCreator
	ErrCodeProxyNotRegistered
	ErrCodeDisposeFailed
	ErrCodeInvalidDeclaration
	ErrCodeRequestScopeMissing
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:                 "UNKNOWN",
	ErrCodeServiceNotFound:         "SERVICE_NOT_FOUND",
	ErrCodeCircularDependency:      "CIRCULAR_DEPENDENCY",
	ErrCodeDuplicateService:        "DUPLICATE_SERVICE",
	ErrCodeResolutionFailed:        "RESOLUTION_FAILED",
	ErrCodeProviderFailed:          "PROVIDER_FAILED",
	ErrCodeStartupFailed:           "STARTUP_FAILED",
	ErrCodeShutdownFailed:          "SHUTDOWN_FAILED",
	ErrCodeScopeNotFound:           "SCOPE_NOT_FOUND",
	ErrCodeValidationFailed:        "VALIDATION_FAILED",
	ErrCodeTimeout:                 "TIMEOUT",
	ErrCodeContainerAlreadyStarted: "CONTAINER_ALREADY_STARTED",
	ErrCodeDecoratorFailed:         "DECORATOR_FAILED",
	ErrCodeModuleApplyFailed:       "MODULE_APPLY_FAILED",
	ErrCodeModuleInvalidProvider:   "MODULE_INVALID_PROVIDER",
	ErrCodeUnsatisfiableDependency: "UNSATISFIABLE_DEPENDENCY",
	ErrCodeTypeMismatch:            "TYPE_MISMATCH",
	ErrCodeCreatorUnavailable:      "CREATOR_UNAVAILABLE",
	ErrCodeMissingCreatorContext:   "MISSING_CREATOR_CONTEXT",
	ErrCodeInvalidCreator:          "INVALID_CREATOR",
	ErrCodeProxyNotRegistered:      "PROXY_NOT_REGISTERED",
	ErrCodeDisposeFailed:           "DISPOSE_FAILED",
	ErrCodeInvalidDeclaration:      "INVALID_DECLARATION",
	ErrCodeRequestScopeMissing:     "REQUEST_SCOPE_MISSING",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", c)
}

type Error struct {
	Code    ErrorCode
	Message string
	Service string
	Cause   error
	Stack   []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s]", e.Code))

	if e.Service != "" {
		b.WriteString(fmt.Sprintf(" service=%q:", e.Service))
	}

	b.WriteString(" ")
	b.WriteString(e.Message)

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) WithService(service string) *Error {
	e.Service = service
	return e
}

func (e *Error) WithStack(stack []string) *Error {
	e.Stack = stack
	return e
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// sentinels maps the errors raised by the internal packages to codes. The
// order decides the code reported for a cause that matches several entries.
var sentinels = []struct {
	err  error
	code ErrorCode
}{
	{container.ErrCircularDependency, ErrCodeCircularDependency},
	{declaration.ErrCircularDeclaration, ErrCodeCircularDependency},
	{declaration.ErrInvalidDeclaration, ErrCodeInvalidDeclaration},
	{container.ErrDuplicateService, ErrCodeDuplicateService},
	{activation.ErrUnsatisfiableDependency, ErrCodeUnsatisfiableDependency},
	{activation.ErrMissingCreatorContext, ErrCodeMissingCreatorContext},
	{activation.ErrCreatorUnavailable, ErrCodeCreatorUnavailable},
	{activation.ErrScopeNotFound, ErrCodeScopeNotFound},
	{weakref.ErrNoIdentity, ErrCodeInvalidCreator},
	{scopecache.ErrScopeReleased, ErrCodeCreatorUnavailable},
	{scopecache.ErrDisposeFailed, ErrCodeDisposeFailed},
	{container.ErrServiceNotFound, ErrCodeServiceNotFound},
	{container.ErrDeclarationUnbound, ErrCodeServiceNotFound},
	{container.ErrMissingDependencies, ErrCodeServiceNotFound},
	{container.ErrRequestScopeMissing, ErrCodeRequestScopeMissing},
	{container.ErrNotBuildable, ErrCodeProviderFailed},
	{container.ErrDecoratorFailed, ErrCodeDecoratorFailed},
	{container.ErrProviderFailed, ErrCodeProviderFailed},
	{container.ErrAlreadyStarted, ErrCodeContainerAlreadyStarted},
	{container.ErrStartupFailed, ErrCodeStartupFailed},
	{container.ErrShutdownFailed, ErrCodeShutdownFailed},
	{context.DeadlineExceeded, ErrCodeTimeout},
}

// codeOf returns the code of the first *Error in err's chain, else the code
// of the first matching internal sentinel, else fallback.
func codeOf(err error, fallback ErrorCode) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return fallback
}

// hasCode walks the whole error tree, including multierr aggregates and
// plain internal errors that never passed through the public API.
func hasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, &Error{Code: code}) {
		return true
	}
	for _, s := range sentinels {
		if s.code == code && errors.Is(err, s.err) {
			return true
		}
	}
	return false
}

// wrap converts an internal error into an *Error, keeping an existing *Error
// untouched.
func wrap(err error, service string, fallback ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e == err {
		return err
	}
	return newError(codeOf(err, fallback), message, err).WithService(service)
}

func errResolutionFailed(service string, cause error) *Error {
	return newError(
		ErrCodeResolutionFailed,
		fmt.Sprintf("failed to resolve %s", service),
		cause,
	).WithService(service)
}

func errRegistrationFailed(service string, cause error) error {
	return wrap(cause, service, ErrCodeProviderFailed, "failed to register "+service)
}

func errTypeMismatch(service string, actual string, target string, expected string) *Error {
	return newError(
		ErrCodeTypeMismatch,
		fmt.Sprintf("cannot inject creator of type %s into %s of type %s", actual, target, expected),
		nil,
	).WithService(service)
}

func errValidationFailed(cause error) *Error {
	return newError(codeOf(cause, ErrCodeValidationFailed), "container validation failed", cause)
}

func errStartupFailed(service string, cause error) *Error {
	return newError(
		ErrCodeStartupFailed,
		fmt.Sprintf("failed to start %s", service),
		cause,
	).WithService(service)
}

func errShutdownFailed(service string, cause error) *Error {
	return newError(
		ErrCodeShutdownFailed,
		fmt.Sprintf("failed to stop %s", service),
		cause,
	).WithService(service)
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeServiceNotFound)
}

func IsCircularDependency(err error) bool {
	return hasCode(err, ErrCodeCircularDependency)
}

func IsDuplicateService(err error) bool {
	return hasCode(err, ErrCodeDuplicateService)
}

func IsResolutionFailed(err error) bool {
	return hasCode(err, ErrCodeResolutionFailed)
}

func IsProviderFailed(err error) bool {
	return hasCode(err, ErrCodeProviderFailed)
}

func IsStartupFailed(err error) bool {
	return hasCode(err, ErrCodeStartupFailed)
}

func IsShutdownFailed(err error) bool {
	return hasCode(err, ErrCodeShutdownFailed)
}

func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

func IsUnsatisfiableDependency(err error) bool {
	return hasCode(err, ErrCodeUnsatisfiableDependency)
}

func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

func IsCreatorUnavailable(err error) bool {
	return hasCode(err, ErrCodeCreatorUnavailable)
}

func IsMissingCreatorContext(err error) bool {
	return hasCode(err, ErrCodeMissingCreatorContext)
}

func IsInvalidCreator(err error) bool {
	return hasCode(err, ErrCodeInvalidCreator)
}

func IsProxyNotRegistered(err error) bool {
	return hasCode(err, ErrCodeProxyNotRegistered)
}

func IsScopeNotFound(err error) bool {
	return hasCode(err, ErrCodeScopeNotFound)
}

func IsDisposeFailed(err error) bool {
	return hasCode(err, ErrCodeDisposeFailed)
}
