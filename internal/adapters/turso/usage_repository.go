package turso

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/intura-ai/intura-go/internal/domain"
	"github.com/intura-ai/intura-go/internal/util"
)

type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Create(ctx context.Context, e *domain.UsageEntry) error {
	id, err := WithRetry(ctx, 2, func() (int64, error) {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO chat_usage (session_id, experiment_id, treatment_id, treatment_name, model_name,
				input_tokens, output_tokens, total_tokens, latency_ms, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.ExperimentID, e.TreatmentID, e.TreatmentName, e.ModelName,
			e.InputTokens, e.OutputTokens, e.TotalTokens, e.LatencyMs, util.FormatTimeDB(e.RecordedAt))
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	e.ID = id
	return nil
}

func (r *UsageRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.UsageEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, experiment_id, treatment_id, treatment_name, model_name,
			input_tokens, output_tokens, total_tokens, latency_ms, recorded_at
		FROM chat_usage WHERE session_id = ? ORDER BY recorded_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	defer rows.Close()

	var out []*domain.UsageEntry
	for rows.Next() {
		var (
			e          domain.UsageEntry
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ExperimentID, &e.TreatmentID, &e.TreatmentName, &e.ModelName,
			&e.InputTokens, &e.OutputTokens, &e.TotalTokens, &e.LatencyMs, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		e.RecordedAt = util.ParseTimeDB(recordedAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Summarize aggregates usage per treatment. An empty experimentID covers all
// experiments and a zero since covers all time.
func (r *UsageRepository) Summarize(ctx context.Context, experimentID string, since time.Time) ([]*domain.UsageSummary, error) {
	sinceParam := ""
	if !since.IsZero() {
		sinceParam = util.FormatTimeDB(since)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT experiment_id, treatment_name, model_name, COUNT(*),
			COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(total_tokens), 0), COALESCE(SUM(latency_ms), 0)
		FROM chat_usage
		WHERE (? = '' OR experiment_id = ?) AND (? = '' OR recorded_at >= ?)
		GROUP BY experiment_id, treatment_name, model_name
		ORDER BY experiment_id, treatment_name, model_name`,
		experimentID, experimentID, sinceParam, sinceParam)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	defer rows.Close()

	var out []*domain.UsageSummary
	for rows.Next() {
		var s domain.UsageSummary
		if err := rows.Scan(&s.ExperimentID, &s.TreatmentName, &s.ModelName, &s.Invocations,
			&s.InputTokens, &s.OutputTokens, &s.TotalTokens, &s.TotalLatencyMs); err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *UsageRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_usage WHERE recorded_at < ?`, util.FormatTimeDB(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete usage: %w", err)
	}
	return res.RowsAffected()
}
