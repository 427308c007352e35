package turso_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/intura-ai/intura-go/internal/adapters/turso"
	"github.com/intura-ai/intura-go/internal/domain"
)

func TestReleaseRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewReleaseRepository(db)

	// Empty journal
	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no release, got %+v", latest)
	}

	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	first := domain.NewRelease("r1", "0.0.3", "0.0.4", started)
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second := domain.NewRelease("r2", "0.0.4", "0.1.0", started.Add(time.Hour))
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Record a failure at upload
	if err := repo.UpdateStep(ctx, "r2", domain.StepBump, domain.StatusCompleted, nil); err != nil {
		t.Fatalf("UpdateStep bump failed: %v", err)
	}
	if err := repo.UpdateStep(ctx, "r2", domain.StepBuild, domain.StatusCompleted, nil); err != nil {
		t.Fatalf("UpdateStep build failed: %v", err)
	}
	if err := repo.UpdateStep(ctx, "r2", domain.StepUpload, domain.StatusFailed, errors.New("twine exited 1")); err != nil {
		t.Fatalf("UpdateStep upload failed: %v", err)
	}
	if err := repo.Finish(ctx, "r2", domain.StatusFailed); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	latest, err = repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.ID != "r2" {
		t.Fatalf("expected latest r2, got %+v", latest)
	}
	if latest.Status != domain.StatusFailed || latest.FinishedAt == nil {
		t.Errorf("expected failed and finished, got %s %v", latest.Status, latest.FinishedAt)
	}
	if len(latest.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(latest.Steps))
	}
	upload := latest.Step(domain.StepUpload)
	if upload.Status != domain.StatusFailed || upload.Error == nil || *upload.Error != "twine exited 1" {
		t.Errorf("unexpected upload step %+v", upload)
	}
	got := latest.Incomplete()
	if len(got) != 2 || got[0] != domain.StepUpload || got[1] != domain.StepTag {
		t.Errorf("expected upload and tag incomplete, got %v", got)
	}

	// List is newest first
	list, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "r2" || list[1].ID != "r1" {
		t.Errorf("unexpected list order")
	}

	// Get by id and missing ids
	r1, err := repo.Get(ctx, "r1")
	if err != nil || r1 == nil || r1.PreviousVersion != "0.0.3" || !r1.StartedAt.Equal(started) {
		t.Errorf("Get r1 = %+v, %v", r1, err)
	}
	missing, err := repo.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Get missing = %+v, %v", missing, err)
	}
	if err := repo.UpdateStep(ctx, "nope", domain.StepBump, domain.StatusCompleted, nil); err == nil {
		t.Error("expected error updating a missing release")
	}
}
