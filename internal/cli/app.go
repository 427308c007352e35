package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/intura-ai/intura-go/internal/adapters/otel"
	"github.com/intura-ai/intura-go/internal/adapters/turso"
	"github.com/intura-ai/intura-go/internal/infrastructure/config"
	"github.com/intura-ai/intura-go/internal/ports"
	"github.com/intura-ai/intura-go/internal/usage"
	"github.com/intura-ai/intura-go/pkg/intura"
)

// AppContext holds the shared dependencies of the commands that persist or
// export data.
type AppContext struct {
	DB       *sql.DB
	Releases ports.ReleaseJournal
	Usage    ports.UsageRepository
	Exporter ports.UsageExporter
	Ledger   *usage.Ledger
}

// NewAppContext opens the database, applies pending migrations and sets up
// the usage exporter.
func NewAppContext(ctx context.Context) (*AppContext, error) {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}
	db, err := turso.Open(ctx, *dbCfg, turso.Options{Ping: true, Migrate: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	otelCfg, err := config.LoadOTel()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load OTEL config: %w", err)
	}
	var exporter ports.UsageExporter = otel.NewNoOpExporter()
	if exp, err := otel.NewExporter(ctx, *otelCfg); err == nil {
		exporter = exp
	} else if !errors.Is(err, otel.ErrDisabled) {
		slog.Warn("usage metrics disabled", "error", err)
	}

	repos := turso.NewRepositories(db)
	return &AppContext{
		DB:       db,
		Releases: repos.Releases,
		Usage:    repos.Usage,
		Exporter: exporter,
		Ledger:   usage.NewLedger(repos.Usage, exporter),
	}, nil
}

// Close flushes the exporter and closes the database.
func (a *AppContext) Close(ctx context.Context) error {
	var errs []error
	if a.Exporter != nil {
		errs = append(errs, a.Exporter.Close(ctx))
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// newDashboardClient builds a validated client from the environment.
func newDashboardClient(ctx context.Context) (*intura.Client, error) {
	cfg, err := config.LoadAPI()
	if err != nil {
		return nil, fmt.Errorf("failed to load API config: %w", err)
	}
	return intura.NewClient(ctx, cfg.Key,
		intura.WithBaseURL(cfg.BaseURL),
		intura.WithUsageUpload(cfg.UploadUsage),
		intura.WithVerbose(cfg.Verbose || verbose),
	)
}
