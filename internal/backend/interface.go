package backend

import (
	"context"

	"expensetracker/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Pinger is implemented by repositories that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Result contains the repository and optional cleanup function
type Result struct {
	Repository store.Repository
	// Events is set when the backend can keep a change history.
	Events  store.EventRecorder
	Cleanup CleanupFunc
}

// Ping checks the repository when it supports health checks.
func (r *Result) Ping(ctx context.Context) error {
	if p, ok := r.Repository.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Factory creates repositories based on configuration
type Factory interface {
	// Create creates a repository instance based on the provided config
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type Type

	// Memory specific; empty keeps data in process only
	DataFile string

	// SQLite specific
	SQLiteDBPath string

	// PostgreSQL specific
	PostgresURL string
}

// Type represents the type of backend
type Type string

const (
	MemoryBackend   Type = "memory"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
