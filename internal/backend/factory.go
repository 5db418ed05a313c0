package backend

import (
	"context"
	"fmt"
	"log/slog"

	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	gsheet "sheetexpense/internal/sheets/google"
	"sheetexpense/internal/sheets/memory"

	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case GoogleBackend:
		return f.createGoogleBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createGoogleBackend(config Config) (*BackendResult, error) {
	var opts []goption.ClientOption
	if config.GoogleEndpoint != "" {
		opts = append(opts, goption.WithEndpoint(config.GoogleEndpoint))
	}

	f.logger.Info("Initialized Google workbook backend", log.FieldEndpoint, config.GoogleEndpoint != "")

	return &BackendResult{
		Connector: gsheet.NewConnector(opts...),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	svc := memory.New()

	f.logger.Warn("Initialized in-memory workbook backend; data is lost on restart")

	return &BackendResult{
		Connector: MemoryConnector{Service: svc},
		Memory:    svc,
	}, nil
}

// MemoryConnector adapts a memory.Service to the Connector interface.
type MemoryConnector struct {
	Service *memory.Service
}

func (m MemoryConnector) Connect(_ context.Context, tok *oauth2.Token) (sheets.Workbook, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("connect: %w", sheets.ErrUnauthorized)
	}
	return m.Service.Workbook(tok.AccessToken), nil
}
