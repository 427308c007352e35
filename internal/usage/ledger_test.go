package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/intura-ai/intura-go/internal/domain"
	"github.com/intura-ai/intura-go/pkg/callbacks"
)

type memRepo struct {
	entries []*domain.UsageEntry
	err     error
}

func (r *memRepo) Create(_ context.Context, e *domain.UsageEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *memRepo) ListBySession(context.Context, string) ([]*domain.UsageEntry, error) {
	return r.entries, nil
}

func (r *memRepo) Summarize(context.Context, string, time.Time) ([]*domain.UsageSummary, error) {
	return nil, nil
}

func (r *memRepo) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memExporter struct {
	exported []*domain.UsageEntry
}

func (e *memExporter) ExportUsage(_ context.Context, u *domain.UsageEntry) error {
	e.exported = append(e.exported, u)
	return nil
}

func (e *memExporter) Close(context.Context) error { return nil }

var record = callbacks.UsageRecord{
	SessionID:     "s1",
	ExperimentID:  "exp-1",
	TreatmentID:   "t1",
	TreatmentName: "formal",
	ModelName:     "gpt-4o",
	Usage:         callbacks.Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7},
	Latency:       1500 * time.Millisecond,
	RecordedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}

func TestEntry(t *testing.T) {
	e := Entry(record)
	if e.TotalTokens != 7 || e.LatencyMs != 1500 || e.ModelName != "gpt-4o" || !e.RecordedAt.Equal(record.RecordedAt) {
		t.Errorf("Entry() = %+v", e)
	}
}

func TestLedger_RecordUsage(t *testing.T) {
	repo, exp := &memRepo{}, &memExporter{}
	l := NewLedger(repo, exp)

	if err := l.RecordUsage(context.Background(), record); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}
	if len(repo.entries) != 1 || len(exp.exported) != 1 {
		t.Errorf("repo %d, exported %d, want 1 each", len(repo.entries), len(exp.exported))
	}
}

func TestLedger_ExportsWhenRepoFails(t *testing.T) {
	repo, exp := &memRepo{err: errors.New("disk full")}, &memExporter{}
	l := NewLedger(repo, exp)

	if err := l.RecordUsage(context.Background(), record); err == nil {
		t.Error("expected the repository error")
	}
	if len(exp.exported) != 1 {
		t.Error("exporter skipped after repository failure")
	}
}

func TestLedger_NilSinks(t *testing.T) {
	if err := NewLedger(nil, nil).RecordUsage(context.Background(), record); err != nil {
		t.Errorf("RecordUsage() error = %v", err)
	}
}
