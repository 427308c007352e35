// Package usage stores and exports the chat model usage reported by
// callbacks.UsageTracker.
package usage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/intura-ai/intura-go/internal/domain"
	"github.com/intura-ai/intura-go/internal/logging"
	"github.com/intura-ai/intura-go/internal/ports"
	"github.com/intura-ai/intura-go/pkg/callbacks"
)

// Ledger is a callbacks.Recorder writing to a repository and an exporter.
// Either may be nil.
type Ledger struct {
	repo     ports.UsageRepository
	exporter ports.UsageExporter
	logger   *slog.Logger
}

var _ callbacks.Recorder = (*Ledger)(nil)

func NewLedger(repo ports.UsageRepository, exporter ports.UsageExporter) *Ledger {
	return &Ledger{
		repo:     repo,
		exporter: exporter,
		logger:   logging.Component(logging.Usage),
	}
}

// RecordUsage persists rec and exports it. Both sinks are attempted even if
// the first fails.
func (l *Ledger) RecordUsage(ctx context.Context, rec callbacks.UsageRecord) error {
	entry := Entry(rec)

	var errs []error
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	if l.exporter != nil {
		if err := l.exporter.ExportUsage(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	l.logger.Debug("recorded usage", "session_id", entry.SessionID, "total_tokens", entry.TotalTokens)
	return errors.Join(errs...)
}

// Entry converts a tracker record to a ledger entry.
func Entry(rec callbacks.UsageRecord) *domain.UsageEntry {
	return &domain.UsageEntry{
		SessionID:     rec.SessionID,
		ExperimentID:  rec.ExperimentID,
		TreatmentID:   rec.TreatmentID,
		TreatmentName: rec.TreatmentName,
		ModelName:     rec.ModelName,
		InputTokens:   rec.Usage.InputTokens,
		OutputTokens:  rec.Usage.OutputTokens,
		TotalTokens:   rec.Usage.TotalTokens,
		LatencyMs:     rec.Latency.Milliseconds(),
		RecordedAt:    rec.RecordedAt,
	}
}
