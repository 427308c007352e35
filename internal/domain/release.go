package domain

import "time"

// Release steps in execution order.
const (
	StepBump   = "bump"
	StepBuild  = "build"
	StepUpload = "upload"
	StepTag    = "tag"
)

// Steps lists every release step in the order it runs.
var Steps = []string{StepBump, StepBuild, StepUpload, StepTag}

// Release and step statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

type Release struct {
	ID              string
	Version         string
	PreviousVersion string
	Status          string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Steps           []ReleaseStep
}

type ReleaseStep struct {
	Name      string
	Status    string
	Error     *string
	UpdatedAt time.Time
}

// NewRelease returns a running release with every step pending.
func NewRelease(id, previous, next string, now time.Time) *Release {
	r := &Release{
		ID:              id,
		Version:         next,
		PreviousVersion: previous,
		Status:          StatusRunning,
		StartedAt:       now,
	}
	for _, s := range Steps {
		r.Steps = append(r.Steps, ReleaseStep{Name: s, Status: StatusPending, UpdatedAt: now})
	}
	return r
}

// Step returns the named step, or nil.
func (r *Release) Step(name string) *ReleaseStep {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Done reports whether a step needs no further work.
func (s ReleaseStep) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusSkipped
}

// Incomplete returns the steps that neither completed nor were skipped, in
// execution order.
func (r *Release) Incomplete() []string {
	var out []string
	for _, name := range Steps {
		s := r.Step(name)
		if s == nil || !s.Done() {
			out = append(out, name)
		}
	}
	return out
}

// Resumable reports whether a resume has anything to do.
func (r *Release) Resumable() bool {
	return r.Status != StatusCompleted && len(r.Incomplete()) > 0
}
