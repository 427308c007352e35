package domain

import "time"

// UsageEntry is one tracked chat model generation.
type UsageEntry struct {
	ID            int64
	SessionID     string
	ExperimentID  string
	TreatmentID   string
	TreatmentName string
	ModelName     string
	InputTokens   int64
	OutputTokens  int64
	TotalTokens   int64
	LatencyMs     int64
	RecordedAt    time.Time
}

// UsageSummary aggregates usage per experiment treatment.
type UsageSummary struct {
	ExperimentID   string
	TreatmentName  string
	ModelName      string
	Invocations    int64
	InputTokens    int64
	OutputTokens   int64
	TotalTokens    int64
	TotalLatencyMs int64
}

// AverageLatency is zero when there were no invocations.
func (s UsageSummary) AverageLatency() time.Duration {
	if s.Invocations == 0 {
		return 0
	}
	return time.Duration(s.TotalLatencyMs/s.Invocations) * time.Millisecond
}

// TokensPerInvocation is zero when there were no invocations.
func (s UsageSummary) TokensPerInvocation() float64 {
	if s.Invocations == 0 {
		return 0
	}
	return float64(s.TotalTokens) / float64(s.Invocations)
}
