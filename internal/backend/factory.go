package backend

import (
	"context"
	"fmt"

	"pocket/internal/log"
	"pocket/internal/remote"
	"pocket/internal/remote/memory"
	"pocket/internal/remote/postgres"
	"pocket/internal/remote/sheets"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case NoneBackend:
		f.logger.Info("Remote store disabled, all data stays local")
		return &BackendResult{Type: NoneBackend}, nil
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		f.logger.Warn("Using in-memory remote store, data is lost on restart")
		return &BackendResult{Type: MemoryBackend, Store: remote.NewStore(memory.New())}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := postgres.Migrate(config.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	pg, err := postgres.Open(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
	}

	f.logger.Info("Initialized postgres backend")

	return &BackendResult{
		Type:  PostgresBackend,
		Store: remote.NewStore(pg),
		Cleanup: func() error {
			pg.Close()
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		TxsSheet:        config.GoogleTxsSheetName,
		AccountsSheet:   config.GoogleAccountsSheetName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"txs_sheet", config.GoogleTxsSheetName,
		"accounts_sheet", config.GoogleAccountsSheetName)

	return &BackendResult{Type: SheetsBackend, Store: remote.NewStore(cli)}, nil
}
