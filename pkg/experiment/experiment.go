// Package experiment builds chat models for the treatments the Intura
// dashboard selects for an experiment.
//
// Build asks the dashboard which treatments apply to a session and its
// features, then turns every treatment into a langchaingo model wrapped with
// a usage tracker:
//
//	client, _ := intura.NewClient(ctx, "")
//	exp := experiment.New(client)
//	res, err := exp.BuildOne(ctx, "experiment-id", experiment.WithFeatures(map[string]any{"tier": "pro"}))
//	if err != nil {
//		return err
//	}
//	answer, err := res.Chat(ctx, "Summarise this ticket")
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/intura-ai/intura-go/internal/logging"
	"github.com/intura-ai/intura-go/pkg/callbacks"
	"github.com/intura-ai/intura-go/pkg/intura"
)

var ErrNoModels = errors.New("no chat model could be built")

// Client is the part of the dashboard API a ChatModelExperiment needs.
type Client interface {
	BuildChatModel(ctx context.Context, experimentID string, features map[string]any) ([]intura.ChatModelConfig, error)
	callbacks.EventSink
}

// ChatModelExperiment builds the chat models of an experiment.
type ChatModelExperiment struct {
	client    Client
	registry  *Registry
	recorders []callbacks.Recorder
	logger    *slog.Logger

	mu          sync.RWMutex
	chosenModel string
	data        []intura.ChatModelConfig
}

// Option configures a ChatModelExperiment.
type Option func(*ChatModelExperiment)

// WithRegistry replaces the provider registry.
func WithRegistry(r *Registry) Option {
	return func(e *ChatModelExperiment) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithRecorder sends the usage of every built model to r.
func WithRecorder(r callbacks.Recorder) Option {
	return func(e *ChatModelExperiment) {
		if r != nil {
			e.recorders = append(e.recorders, r)
		}
	}
}

// WithVerboseLogging turns the experiment logger to debug.
func WithVerboseLogging(verbose bool) Option {
	return func(e *ChatModelExperiment) {
		if verbose {
			logging.SetComponentLevel(logging.Experiment, slog.LevelDebug)
		}
	}
}

func New(client Client, opts ...Option) *ChatModelExperiment {
	e := &ChatModelExperiment{
		client:   client,
		registry: DefaultRegistry(),
		logger:   logging.Component(logging.Experiment),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger.Debug("initialized chat model experiment")
	return e
}

// ChosenModel is the model name of the last single model build.
func (e *ChatModelExperiment) ChosenModel() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chosenModel
}

// Data returns the treatment configurations of the last build.
func (e *ChatModelExperiment) Data() []intura.ChatModelConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]intura.ChatModelConfig(nil), e.data...)
}

type buildConfig struct {
	sessionID string
	features  map[string]any
	maxModels int
	verbose   bool
}

// BuildOption configures a single Build call.
type BuildOption func(*buildConfig)

// WithSessionID ties the built models to an existing session. A fresh id is
// generated otherwise.
func WithSessionID(id string) BuildOption {
	return func(c *buildConfig) { c.sessionID = id }
}

// WithFeatures passes the routing features to the dashboard.
func WithFeatures(f map[string]any) BuildOption {
	return func(c *buildConfig) { c.features = f }
}

// WithMaxModels caps the number of models returned. Values below 1 mean 1.
func WithMaxModels(n int) BuildOption {
	return func(c *buildConfig) { c.maxModels = n }
}

// WithVerbose logs this build at debug level.
func WithVerbose(v bool) BuildOption {
	return func(c *buildConfig) { c.verbose = v }
}

// Build fetches the treatments for experimentID and constructs their models.
// Treatments whose provider is unknown or whose model cannot be created are
// skipped. ErrNoModels is returned when nothing could be built.
func (e *ChatModelExperiment) Build(ctx context.Context, experimentID string, opts ...BuildOption) ([]*Result, error) {
	cfg := buildConfig{maxModels: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxModels < 1 {
		cfg.maxModels = 1
	}
	if cfg.features == nil {
		cfg.features = map[string]any{}
	}
	if cfg.sessionID == "" {
		cfg.sessionID = uuid.NewString()
	}

	if !cfg.verbose {
		return e.build(ctx, experimentID, cfg)
	}
	var (
		results []*Result
		err     error
	)
	logging.WithComponentLevel(logging.Experiment, slog.LevelDebug, func() {
		results, err = e.build(ctx, experimentID, cfg)
	})
	return results, err
}

// BuildOne builds a single model.
func (e *ChatModelExperiment) BuildOne(ctx context.Context, experimentID string, opts ...BuildOption) (*Result, error) {
	all := make([]BuildOption, 0, len(opts)+1)
	all = append(all, opts...)
	results, err := e.Build(ctx, experimentID, append(all, WithMaxModels(1))...)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (e *ChatModelExperiment) build(ctx context.Context, experimentID string, cfg buildConfig) ([]*Result, error) {
	e.logger.Info("building chat model", "experiment_id", experimentID)
	e.logger.Debug("build parameters", "features", cfg.features, "session_id", cfg.sessionID)

	data, err := e.client.BuildChatModel(ctx, experimentID, cfg.features)
	if err != nil {
		e.logger.Warn("failed to build chat model", "experiment_id", experimentID, "error", err)
		return nil, fmt.Errorf("failed to build chat model for experiment %s: %w", experimentID, err)
	}
	e.logger.Debug("retrieved model configurations", "count", len(data))

	e.mu.Lock()
	e.data = data
	e.mu.Unlock()

	var (
		results []*Result
		skipped []error
	)
	for _, md := range data {
		res, err := e.newResult(ctx, md, experimentID, cfg.sessionID)
		if err != nil {
			e.logger.Warn("skipping treatment", "treatment", md.TreatmentName, "error", err)
			skipped = append(skipped, err)
			continue
		}
		results = append(results, res)
		e.logger.Debug("added model", "model", md.ModelName())
		if len(results) >= cfg.maxModels {
			break
		}
	}

	if len(results) == 0 {
		if len(skipped) > 0 {
			return nil, fmt.Errorf("%w for experiment %s: %w", ErrNoModels, experimentID, errors.Join(skipped...))
		}
		return nil, fmt.Errorf("%w for experiment %s", ErrNoModels, experimentID)
	}

	if cfg.maxModels == 1 {
		name := results[0].Treatment.ModelName()
		e.mu.Lock()
		e.chosenModel = name
		e.mu.Unlock()
		e.logger.Info("selected model", "model", name)
	}
	return results, nil
}

func (e *ChatModelExperiment) newResult(ctx context.Context, md intura.ChatModelConfig, experimentID, sessionID string) (*Result, error) {
	factory, provider, err := e.registry.Lookup(md.ModelProvider, md.SDKConfig.ClassName)
	if err != nil {
		return nil, err
	}

	conf := withoutNil(md.ModelConfiguration)
	model, err := factory(ctx, providerConfig(provider, conf))
	if err != nil {
		return nil, fmt.Errorf("treatment %s: %w", md.TreatmentName, err)
	}
	e.logger.Debug("using provider", "provider", provider, "treatment", md.TreatmentName)

	tracker := callbacks.NewUsageTracker(e.client, callbacks.Treatment{
		ExperimentID:  experimentID,
		TreatmentID:   md.TreatmentID,
		TreatmentName: md.TreatmentName,
		SessionID:     sessionID,
		ModelName:     md.ModelName(),
	}, e.trackerOptions()...)

	return &Result{
		Model:         callbacks.Track(model, tracker),
		Provider:      provider,
		Configuration: conf,
		CallOptions:   callOptions(conf),
		Templates:     []Message{{Role: RoleSystem, Content: md.Prompt}},
		Metadata: map[string]string{
			"experiment_id":  experimentID,
			"treatment_id":   md.TreatmentID,
			"treatment_name": md.TreatmentName,
			"session_id":     sessionID,
		},
		Tracker:   tracker,
		Treatment: md,
	}, nil
}

func (e *ChatModelExperiment) trackerOptions() []callbacks.TrackerOption {
	opts := make([]callbacks.TrackerOption, 0, len(e.recorders))
	for _, r := range e.recorders {
		opts = append(opts, callbacks.WithRecorder(r))
	}
	return opts
}

func withoutNil(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
