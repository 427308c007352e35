package ports

import (
	"context"

	"github.com/intura-ai/intura-go/internal/domain"
)

// UsageExporter exports usage entries to an external observability system.
type UsageExporter interface {
	ExportUsage(ctx context.Context, e *domain.UsageEntry) error
	// Close shuts down the exporter and flushes any pending metrics.
	Close(ctx context.Context) error
}
