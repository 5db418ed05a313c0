package backend

import (
	"context"

	"sheetexpense/internal/sheets"
	"sheetexpense/internal/sheets/memory"

	"golang.org/x/oauth2"
)

// Connector opens a Workbook authenticated with one user's token.
type Connector interface {
	Connect(ctx context.Context, tok *oauth2.Token) (sheets.Workbook, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the connector and optional cleanup function
type BackendResult struct {
	Connector Connector
	// Memory is set for the memory backend so callers can inspect state.
	Memory  *memory.Service
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// GoogleEndpoint overrides the Google API base URL (tests, proxies).
	GoogleEndpoint string
}

// BackendType represents the type of backend
type BackendType string

const (
	GoogleBackend BackendType = "google"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case GoogleBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
