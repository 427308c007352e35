package prometheus

import (
	"context"

	"github.com/intura-ai/intura-go/internal/ports"
)

// NoOpClient reports live usage as unavailable.
type NoOpClient struct{}

func NewNoOpClient() *NoOpClient {
	return &NoOpClient{}
}

func (c *NoOpClient) RollingWindowUsage(ctx context.Context, experimentID string, hours int) (*ports.UsageWindow, error) {
	return &ports.UsageWindow{WindowHours: hours}, nil
}

func (c *NoOpClient) IsAvailable(ctx context.Context) bool {
	return false
}
