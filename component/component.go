// Package component defines the lifecycle contract every engine part follows.
// It is the lowest layer and imports no engine packages.
package component

import "context"

// Component has a unique name and an Init → Start → Stop lifecycle.
//
// DependsOn lists names that must be started first. A name prefixed with
// "optional:" is ordered when present and ignored when absent.
type Component interface {
	Name() string
	DependsOn() []string

	// Init reads configuration and creates resources without serving anything
	Init(ctx context.Context, loader ConfigLoader) error

	// Start begins background work
	Start(ctx context.Context) error

	// Stop releases resources; it must be safe to call more than once
	Stop(ctx context.Context) error
}

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	Check(ctx context.Context) error
	Name() string
}

// HealthCheckProvider is implemented by components that expose a checker
type HealthCheckProvider interface {
	GetHealthChecker() HealthChecker
}
