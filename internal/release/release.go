// Package release bumps, builds, uploads and tags a package version.
//
// A release runs four steps in a fixed order: bump writes the version file,
// build and upload run the configured commands, and tag commits the version
// file, creates an annotated tag and pushes both. Each step requires the
// previous one to succeed. When a journal is configured every run and step
// is recorded, so a failed release can be inspected and resumed.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/intura-ai/intura-go/internal/domain"
	"github.com/intura-ai/intura-go/internal/infrastructure/config"
	"github.com/intura-ai/intura-go/internal/logging"
	"github.com/intura-ai/intura-go/internal/ports"
	"github.com/intura-ai/intura-go/internal/version"
)

var (
	ErrNothingToResume = errors.New("no incomplete release to resume")
	ErrNoJournal       = errors.New("release journal is not configured")
)

// StepError wraps the failure of a release step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Options selects the version and the steps of a release.
type Options struct {
	Kind     version.Kind
	Version  string
	NoBuild  bool
	NoUpload bool
	NoTag    bool
	DryRun   bool
}

type Releaser struct {
	cfg     config.Release
	file    *version.File
	runner  Runner
	journal ports.ReleaseJournal
	out     io.Writer
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
}

type Option func(*Releaser)

// WithJournal records runs in j.
func WithJournal(j ports.ReleaseJournal) Option {
	return func(r *Releaser) { r.journal = j }
}

// WithOutput writes progress to w instead of discarding it.
func WithOutput(w io.Writer) Option {
	return func(r *Releaser) { r.out = w }
}

func New(cfg config.Release, runner Runner, opts ...Option) *Releaser {
	r := &Releaser{
		cfg:    cfg,
		file:   version.NewFile(cfg.VersionFile),
		runner: runner,
		out:    io.Discard,
		logger: logging.Component(logging.Release),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CurrentVersion reads the version file.
func (r *Releaser) CurrentVersion() (string, error) {
	return r.file.Read()
}

// Release runs a full release and returns its record. In dry run mode
// commands are only printed and nothing is written.
func (r *Releaser) Release(ctx context.Context, opts Options) (*domain.Release, error) {
	current, err := r.file.Read()
	if err != nil {
		return nil, err
	}
	r.printf("Current version: %s\n", current)

	next, err := version.Resolve(current, opts.Kind, opts.Version)
	if err != nil {
		return nil, err
	}
	r.printf("New version: %s\n", next)

	rel := domain.NewRelease(r.newID(), current, next, r.now().UTC())
	skip := map[string]bool{
		domain.StepBuild:  opts.NoBuild,
		domain.StepUpload: opts.NoUpload,
		domain.StepTag:    opts.NoTag,
	}
	for i := range rel.Steps {
		if skip[rel.Steps[i].Name] {
			rel.Steps[i].Status = domain.StatusSkipped
		}
	}

	record := r.journal != nil && r.cfg.JournalEnabled() && !opts.DryRun
	if record {
		if err := r.journal.Create(ctx, rel); err != nil {
			return nil, fmt.Errorf("failed to record release: %w", err)
		}
	}

	if err := r.runSteps(ctx, rel, domain.Steps, opts.DryRun, record, false); err != nil {
		return rel, err
	}
	r.printf("Release %s completed successfully!\n", next)
	return rel, nil
}

// Resume re-runs the steps of the latest release that did not complete.
func (r *Releaser) Resume(ctx context.Context, dryRun bool) (*domain.Release, error) {
	if r.journal == nil {
		return nil, ErrNoJournal
	}
	rel, err := r.journal.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest release: %w", err)
	}
	if rel == nil || !rel.Resumable() {
		return rel, ErrNothingToResume
	}

	steps := rel.Incomplete()
	r.printf("Resuming release %s (%s)\n", rel.Version, rel.ID)
	r.logger.Info("resuming release", "release_id", rel.ID, "version", rel.Version, "steps", steps)

	if !dryRun {
		rel.Status = domain.StatusRunning
		if err := r.journal.Finish(ctx, rel.ID, domain.StatusRunning); err != nil {
			return rel, fmt.Errorf("failed to reopen release: %w", err)
		}
	}
	if err := r.runSteps(ctx, rel, steps, dryRun, !dryRun, true); err != nil {
		return rel, err
	}
	r.printf("Release %s completed successfully!\n", rel.Version)
	return rel, nil
}

// Status returns the latest recorded release, or nil when none was recorded.
func (r *Releaser) Status(ctx context.Context) (*domain.Release, error) {
	if r.journal == nil {
		return nil, ErrNoJournal
	}
	return r.journal.Latest(ctx)
}

// History lists recorded releases, newest first.
func (r *Releaser) History(ctx context.Context, limit int) ([]*domain.Release, error) {
	if r.journal == nil {
		return nil, ErrNoJournal
	}
	return r.journal.List(ctx, limit)
}

// runSteps runs the named steps in release order. When resuming, the tag
// step skips the commit and tag a previous run already created.
func (r *Releaser) runSteps(ctx context.Context, rel *domain.Release, steps []string, dryRun, record, resuming bool) error {
	for _, name := range domain.Steps {
		step := rel.Step(name)
		if !slices.Contains(steps, name) || step.Status == domain.StatusSkipped {
			continue
		}

		r.setStep(ctx, rel, name, domain.StatusRunning, nil, record)
		if err := r.runStep(ctx, name, rel.Version, dryRun, resuming); err != nil {
			stepErr := &StepError{Step: name, Err: err}
			r.setStep(ctx, rel, name, domain.StatusFailed, err, record)
			r.finish(ctx, rel, domain.StatusFailed, record)
			r.logger.Error("release step failed", "step", name, "version", rel.Version, "error", err)
			return stepErr
		}
		r.setStep(ctx, rel, name, domain.StatusCompleted, nil, record)
	}
	r.finish(ctx, rel, domain.StatusCompleted, record)
	return nil
}

func (r *Releaser) runStep(ctx context.Context, name, v string, dryRun, resuming bool) error {
	switch name {
	case domain.StepBump:
		return r.writeVersion(v, dryRun)
	case domain.StepBuild:
		r.printf("Building package...\n")
		return r.run(ctx, dryRun, r.cfg.BuildCommand...)
	case domain.StepUpload:
		r.printf("Deploying package...\n")
		return r.run(ctx, dryRun, r.cfg.UploadCommand...)
	case domain.StepTag:
		return r.commitAndTag(ctx, v, dryRun, resuming)
	}
	return fmt.Errorf("unknown release step %q", name)
}

// Bump writes the next version and commits the version file without tagging.
func (r *Releaser) Bump(ctx context.Context, kind version.Kind, explicit string, dryRun bool) (string, error) {
	current, err := r.file.Read()
	if err != nil {
		return "", err
	}
	next, err := version.Resolve(current, kind, explicit)
	if err != nil {
		return "", err
	}
	r.printf("Bumping version: %s -> %s\n", current, next)

	if err := r.writeVersion(next, dryRun); err != nil {
		return "", &StepError{Step: domain.StepBump, Err: err}
	}
	if err := r.commit(ctx, next, dryRun); err != nil {
		return "", &StepError{Step: domain.StepBump, Err: err}
	}
	return next, nil
}

// Tag creates and pushes the tag for the version currently in the file.
func (r *Releaser) Tag(ctx context.Context, dryRun bool) (string, error) {
	current, err := r.file.Read()
	if err != nil {
		return "", err
	}
	if err := r.tag(ctx, current, dryRun); err != nil {
		return "", &StepError{Step: domain.StepTag, Err: err}
	}
	return version.Tag(current, r.cfg.TagPrefix), nil
}

// SetFromTag writes the version carried by a tag such as v1.2.3.
func (r *Releaser) SetFromTag(tag string, dryRun bool) (string, error) {
	v, err := version.FromTag(tag, r.cfg.TagPrefix)
	if err != nil {
		return "", err
	}
	return r.SetVersion(v, dryRun)
}

// SetVersion validates v and writes it to the version file.
func (r *Releaser) SetVersion(v string, dryRun bool) (string, error) {
	v, err := version.Parse(v)
	if err != nil {
		return "", err
	}
	if err := r.writeVersion(v, dryRun); err != nil {
		return "", err
	}
	return v, nil
}

func (r *Releaser) writeVersion(v string, dryRun bool) error {
	if dryRun {
		r.printf("Would update %s to version %s\n", r.cfg.VersionFile, v)
		return nil
	}
	if err := r.file.Write(v); err != nil {
		return err
	}
	r.printf("Updated %s to version %s\n", r.cfg.VersionFile, v)
	return nil
}

func (r *Releaser) commit(ctx context.Context, v string, dryRun bool) error {
	if err := r.run(ctx, dryRun, "git", "add", r.cfg.VersionFile); err != nil {
		return fmt.Errorf("failed to add version file to git: %w", err)
	}
	if err := r.run(ctx, dryRun, "git", "commit", "-m", "Bump version to "+v); err != nil {
		return fmt.Errorf("failed to commit version change: %w", err)
	}
	return nil
}

func (r *Releaser) commitAndTag(ctx context.Context, v string, dryRun, resuming bool) error {
	check := resuming && !dryRun
	tag := version.Tag(v, r.cfg.TagPrefix)

	if check && r.committed(ctx) {
		r.printf("Version %s already committed, skipping commit\n", v)
	} else if err := r.commit(ctx, v, dryRun); err != nil {
		return err
	}

	if check && r.tagExists(ctx, tag) {
		r.printf("Tag %s already exists, skipping tag creation\n", tag)
	} else if err := r.run(ctx, dryRun, "git", "tag", "-a", tag, "-m", "Version "+v); err != nil {
		return fmt.Errorf("failed to create git tag: %w", err)
	}
	if err := r.run(ctx, dryRun, "git", "push", r.cfg.Remote, r.cfg.Branch); err != nil {
		return fmt.Errorf("failed to push commits: %w", err)
	}
	if err := r.run(ctx, dryRun, "git", "push", r.cfg.Remote, tag); err != nil {
		return fmt.Errorf("failed to push git tag: %w", err)
	}
	r.printf("Created and pushed git tag: %s\n", tag)
	return nil
}

// committed reports whether the version file matches HEAD, staged changes
// included.
func (r *Releaser) committed(ctx context.Context) bool {
	return r.runner.Run(ctx, "git", "diff", "--quiet", "HEAD", "--", r.cfg.VersionFile) == nil
}

func (r *Releaser) tagExists(ctx context.Context, tag string) bool {
	return r.runner.Run(ctx, "git", "rev-parse", "-q", "--verify", "refs/tags/"+tag) == nil
}

func (r *Releaser) tag(ctx context.Context, v string, dryRun bool) error {
	tag := version.Tag(v, r.cfg.TagPrefix)
	if err := r.run(ctx, dryRun, "git", "tag", "-a", tag, "-m", "Version "+v); err != nil {
		return fmt.Errorf("failed to create git tag: %w", err)
	}
	if err := r.run(ctx, dryRun, "git", "push", r.cfg.Remote, tag); err != nil {
		return fmt.Errorf("failed to push git tag: %w", err)
	}
	r.printf("Created and pushed git tag: %s\n", tag)
	return nil
}

// run prints the command and executes it unless dryRun is set.
func (r *Releaser) run(ctx context.Context, dryRun bool, command ...string) error {
	if len(command) == 0 {
		return errors.New("empty command")
	}
	r.printf("Running: %s\n", commandLine(command[0], command[1:]))
	if dryRun {
		return nil
	}
	return r.runner.Run(ctx, command[0], command[1:]...)
}

func (r *Releaser) setStep(ctx context.Context, rel *domain.Release, name, status string, stepErr error, record bool) {
	step := rel.Step(name)
	step.Status = status
	step.UpdatedAt = r.now().UTC()
	step.Error = nil
	if stepErr != nil {
		msg := stepErr.Error()
		step.Error = &msg
	}
	if !record {
		return
	}
	if err := r.journal.UpdateStep(ctx, rel.ID, name, status, stepErr); err != nil {
		r.logger.Warn("failed to record release step", "release_id", rel.ID, "step", name, "error", err)
	}
}

func (r *Releaser) finish(ctx context.Context, rel *domain.Release, status string, record bool) {
	rel.Status = status
	now := r.now().UTC()
	rel.FinishedAt = &now
	if !record {
		return
	}
	if err := r.journal.Finish(ctx, rel.ID, status); err != nil {
		r.logger.Warn("failed to record release result", "release_id", rel.ID, "error", err)
	}
}

func (r *Releaser) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
