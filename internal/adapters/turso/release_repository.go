package turso

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/intura-ai/intura-go/internal/domain"
	"github.com/intura-ai/intura-go/internal/util"
)

type ReleaseRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewReleaseRepository(db *sql.DB) *ReleaseRepository {
	return &ReleaseRepository{db: db, now: time.Now}
}

func (r *ReleaseRepository) Create(ctx context.Context, rel *domain.Release) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO releases (id, version, previous_version, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.Version, rel.PreviousVersion, rel.Status,
		util.FormatTimeDB(rel.StartedAt), util.NullTime(rel.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to create release: %w", err)
	}

	for i, s := range rel.Steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO release_steps (release_id, step, position, status, error, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rel.ID, s.Name, i, s.Status, util.NullString(deref(s.Error)), util.FormatTimeDB(s.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to create release step %s: %w", s.Name, err)
		}
	}
	return tx.Commit()
}

func (r *ReleaseRepository) UpdateStep(ctx context.Context, releaseID, step, status string, stepErr error) error {
	var errText sql.NullString
	if stepErr != nil {
		errText = util.NullString(stepErr.Error())
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE release_steps SET status = ?, error = ?, updated_at = ?
		WHERE release_id = ? AND step = ?`,
		status, errText, util.FormatTimeDB(r.now()), releaseID, step)
	if err != nil {
		return fmt.Errorf("failed to update release step: %w", err)
	}
	return expectRow(res, "release step "+step)
}

func (r *ReleaseRepository) Finish(ctx context.Context, releaseID, status string) error {
	var finished sql.NullString
	if status != domain.StatusRunning {
		now := r.now()
		finished = util.NullTime(&now)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE releases SET status = ?, finished_at = ? WHERE id = ?`,
		status, finished, releaseID)
	if err != nil {
		return fmt.Errorf("failed to finish release: %w", err)
	}
	return expectRow(res, "release "+releaseID)
}

func (r *ReleaseRepository) Get(ctx context.Context, releaseID string) (*domain.Release, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, version, previous_version, status, started_at, finished_at
		FROM releases WHERE id = ?`, releaseID)
	rel, err := scanRelease(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get release: %w", err)
	}
	if err := r.loadSteps(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

func (r *ReleaseRepository) Latest(ctx context.Context) (*domain.Release, error) {
	list, err := r.List(ctx, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (r *ReleaseRepository) List(ctx context.Context, limit int) ([]*domain.Release, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, previous_version, status, started_at, finished_at
		FROM releases ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var out []*domain.Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, rel := range out {
		if err := r.loadSteps(ctx, rel); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ReleaseRepository) loadSteps(ctx context.Context, rel *domain.Release) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT step, status, error, updated_at FROM release_steps
		WHERE release_id = ? ORDER BY position`, rel.ID)
	if err != nil {
		return fmt.Errorf("failed to list release steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s         domain.ReleaseStep
			errText   sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&s.Name, &s.Status, &errText, &updatedAt); err != nil {
			return fmt.Errorf("failed to scan release step: %w", err)
		}
		s.Error = util.NullStringToPtr(errText)
		s.UpdatedAt = util.ParseTimeDB(updatedAt)
		rel.Steps = append(rel.Steps, s)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRelease(s scanner) (*domain.Release, error) {
	var (
		rel       domain.Release
		startedAt string
		finished  sql.NullString
	)
	if err := s.Scan(&rel.ID, &rel.Version, &rel.PreviousVersion, &rel.Status, &startedAt, &finished); err != nil {
		return nil, err
	}
	rel.StartedAt = util.ParseTimeDB(startedAt)
	rel.FinishedAt = util.NullTimeToPtr(finished)
	return &rel, nil
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s not found", what)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
