package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestNewRelease(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRelease("r1", "0.0.3", "0.0.4", now)

	if r.Status != StatusRunning {
		t.Errorf("Status = %q, want running", r.Status)
	}
	if len(r.Steps) != len(Steps) {
		t.Fatalf("got %d steps, want %d", len(r.Steps), len(Steps))
	}
	for i, s := range r.Steps {
		if s.Name != Steps[i] || s.Status != StatusPending {
			t.Errorf("step %d = %+v", i, s)
		}
	}
}

func TestRelease_Incomplete(t *testing.T) {
	tests := []struct {
		name      string
		statuses  map[string]string
		status    string
		want      []string
		resumable bool
	}{
		{
			name:      "fresh",
			status:    StatusRunning,
			want:      []string{StepBump, StepBuild, StepUpload, StepTag},
			resumable: true,
		},
		{
			name:      "upload failed",
			statuses:  map[string]string{StepBump: StatusCompleted, StepBuild: StatusCompleted, StepUpload: StatusFailed},
			status:    StatusFailed,
			want:      []string{StepUpload, StepTag},
			resumable: true,
		},
		{
			name:      "skipped counts as done",
			statuses:  map[string]string{StepBump: StatusCompleted, StepBuild: StatusSkipped, StepUpload: StatusSkipped, StepTag: StatusFailed},
			status:    StatusFailed,
			want:      []string{StepTag},
			resumable: true,
		},
		{
			name:      "completed",
			statuses:  map[string]string{StepBump: StatusCompleted, StepBuild: StatusCompleted, StepUpload: StatusCompleted, StepTag: StatusCompleted},
			status:    StatusCompleted,
			want:      nil,
			resumable: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRelease("r1", "0.0.3", "0.0.4", time.Now())
			r.Status = tt.status
			for name, st := range tt.statuses {
				r.Step(name).Status = st
			}
			if got := r.Incomplete(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Incomplete() = %v, want %v", got, tt.want)
			}
			if got := r.Resumable(); got != tt.resumable {
				t.Errorf("Resumable() = %v, want %v", got, tt.resumable)
			}
		})
	}
}

func TestUsageSummary_Averages(t *testing.T) {
	s := UsageSummary{Invocations: 4, TotalTokens: 100, TotalLatencyMs: 2000}
	if got := s.AverageLatency(); got != 500*time.Millisecond {
		t.Errorf("AverageLatency() = %v", got)
	}
	if got := s.TokensPerInvocation(); got != 25 {
		t.Errorf("TokensPerInvocation() = %v", got)
	}

	var zero UsageSummary
	if zero.AverageLatency() != 0 || zero.TokensPerInvocation() != 0 {
		t.Error("zero summary should report zero averages")
	}
}
