package backend

import (
	"context"

	"pocket/internal/remote"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the remote store and optional cleanup function.
// Store is nil for the "none" backend: every identity is served locally.
type BackendResult struct {
	Type    BackendType
	Store   *remote.Store
	Cleanup CleanupFunc
}

// Close runs the cleanup function if one was set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates remote stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Postgres specific
	DatabaseURL string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleTxsSheetName       string
	GoogleAccountsSheetName  string
}

// BackendType represents the type of remote backend
type BackendType string

const (
	NoneBackend     BackendType = "none"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case NoneBackend, PostgresBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
