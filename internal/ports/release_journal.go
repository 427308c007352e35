package ports

import (
	"context"

	"github.com/intura-ai/intura-go/internal/domain"
)

// ReleaseJournal records release runs and the status of each step.
type ReleaseJournal interface {
	Create(ctx context.Context, r *domain.Release) error
	UpdateStep(ctx context.Context, releaseID, step, status string, stepErr error) error
	Finish(ctx context.Context, releaseID, status string) error
	// Get returns nil, nil when the release does not exist.
	Get(ctx context.Context, releaseID string) (*domain.Release, error)
	// Latest returns nil, nil when no release was recorded.
	Latest(ctx context.Context) (*domain.Release, error)
	List(ctx context.Context, limit int) ([]*domain.Release, error)
}
