package container

import "errors"

var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrDuplicateService    = errors.New("service already registered")
	ErrCircularDependency  = errors.New("circular dependency detected")
	ErrProviderFailed      = errors.New("provider failed")
	ErrDecoratorFailed     = errors.New("decorator failed")
	ErrAlreadyStarted      = errors.New("container already started")
	ErrRequestScopeMissing = errors.New("request scope not found in context")
	ErrNotBuildable        = errors.New("service cannot be built on demand")
	ErrStartupFailed       = errors.New("startup failed")
	ErrShutdownFailed      = errors.New("shutdown failed")
	ErrMissingDependencies = errors.New("missing dependencies")
	ErrDeclarationUnbound  = errors.New("declared dependency has no provider")
)
