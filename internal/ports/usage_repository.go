package ports

import (
	"context"
	"time"

	"github.com/intura-ai/intura-go/internal/domain"
)

type UsageRepository interface {
	Create(ctx context.Context, e *domain.UsageEntry) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.UsageEntry, error)
	Summarize(ctx context.Context, experimentID string, since time.Time) ([]*domain.UsageSummary, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
