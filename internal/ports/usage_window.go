package ports

import "context"

// UsageWindow is the usage aggregated over a rolling window.
type UsageWindow struct {
	InputTokens  float64
	OutputTokens float64
	Invocations  float64
	WindowHours  int
	Available    bool
}

// TotalTokens is the sum of input and output tokens.
func (w UsageWindow) TotalTokens() float64 {
	return w.InputTokens + w.OutputTokens
}

// UsageWindowReader reads live usage from the metrics backend.
type UsageWindowReader interface {
	RollingWindowUsage(ctx context.Context, experimentID string, hours int) (*UsageWindow, error)
	IsAvailable(ctx context.Context) bool
}
