// Package callbacks tracks chat model usage for Intura experiments.
//
// UsageTracker is a langchaingo callbacks.Handler: it reports the messages
// sent to a treatment's model, the model's answer and its token usage to the
// dashboard, and hands a UsageRecord to any configured Recorder. Tracking
// never fails the model call; errors are logged.
package callbacks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"

	"github.com/intura-ai/intura-go/internal/logging"
)

// EventSink receives chat events. *intura.Client implements it.
type EventSink interface {
	InsertChatInput(ctx context.Context, value any) error
	InsertChatOutput(ctx context.Context, value any) error
	InsertChatUsage(ctx context.Context, value any) error
}

// UsageRecord is one completed generation of a treatment.
type UsageRecord struct {
	SessionID     string
	ExperimentID  string
	TreatmentID   string
	TreatmentName string
	ModelName     string
	Usage         Usage
	Latency       time.Duration
	RecordedAt    time.Time
}

// Recorder persists or exports usage records.
type Recorder interface {
	RecordUsage(ctx context.Context, rec UsageRecord) error
}

// Treatment identifies what a tracker is attached to.
type Treatment struct {
	ExperimentID  string
	TreatmentID   string
	TreatmentName string
	SessionID     string
	ModelName     string
}

// UsageTracker implements callbacks.Handler for a single treatment.
type UsageTracker struct {
	callbacks.SimpleHandler

	Treatment Treatment

	sink      EventSink
	recorders []Recorder
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	lastStart time.Time
}

var _ callbacks.Handler = (*UsageTracker)(nil)

// TrackerOption configures a UsageTracker.
type TrackerOption func(*UsageTracker)

// WithRecorder adds a usage record destination.
func WithRecorder(r Recorder) TrackerOption {
	return func(t *UsageTracker) {
		if r != nil {
			t.recorders = append(t.recorders, r)
		}
	}
}

func withClock(now func() time.Time) TrackerOption {
	return func(t *UsageTracker) { t.now = now }
}

// NewUsageTracker creates a tracker reporting to sink. A nil sink only feeds
// the recorders.
func NewUsageTracker(sink EventSink, treatment Treatment, opts ...TrackerOption) *UsageTracker {
	t := &UsageTracker{
		Treatment: treatment,
		sink:      sink,
		logger:    logging.Component(logging.Usage),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *UsageTracker) base() map[string]any {
	return map[string]any{
		"session_id":     t.Treatment.SessionID,
		"experiment_id":  t.Treatment.ExperimentID,
		"treatment_id":   t.Treatment.TreatmentID,
		"treatment_name": t.Treatment.TreatmentName,
		"model":          t.Treatment.ModelName,
	}
}

func (t *UsageTracker) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	t.mu.Lock()
	t.lastStart = t.now()
	t.mu.Unlock()

	if t.sink == nil {
		return
	}
	value := t.base()
	value["messages"] = messagesValue(ms)
	if err := t.sink.InsertChatInput(ctx, value); err != nil {
		t.logger.Warn("failed to log chat input", "session_id", t.Treatment.SessionID, "error", err)
	}
}

func (t *UsageTracker) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	end := t.now()
	start, ok := startTime(ctx)
	if !ok {
		t.mu.Lock()
		start = t.lastStart
		t.mu.Unlock()
	}
	var latency time.Duration
	if !start.IsZero() {
		latency = end.Sub(start)
	}

	usage := UsageFromResponse(res)

	if t.sink != nil {
		out := t.base()
		out["content"] = contentValue(res)
		if err := t.sink.InsertChatOutput(ctx, out); err != nil {
			t.logger.Warn("failed to log chat output", "session_id", t.Treatment.SessionID, "error", err)
		}

		u := t.base()
		u["usage"] = usage
		u["latency_ms"] = latency.Milliseconds()
		if err := t.sink.InsertChatUsage(ctx, u); err != nil {
			t.logger.Warn("failed to log chat usage", "session_id", t.Treatment.SessionID, "error", err)
		}
	}

	rec := UsageRecord{
		SessionID:     t.Treatment.SessionID,
		ExperimentID:  t.Treatment.ExperimentID,
		TreatmentID:   t.Treatment.TreatmentID,
		TreatmentName: t.Treatment.TreatmentName,
		ModelName:     t.Treatment.ModelName,
		Usage:         usage,
		Latency:       latency,
		RecordedAt:    end.UTC(),
	}
	for _, r := range t.recorders {
		if err := r.RecordUsage(ctx, rec); err != nil {
			t.logger.Warn("failed to record usage", "session_id", rec.SessionID, "error", err)
		}
	}
	t.logger.Debug("tracked generation",
		"treatment", t.Treatment.TreatmentName,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens)
}

func (t *UsageTracker) HandleLLMError(ctx context.Context, err error) {
	t.logger.Warn("chat model call failed", "treatment", t.Treatment.TreatmentName, "error", err)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func messagesValue(ms []llms.MessageContent) []message {
	out := make([]message, 0, len(ms))
	for _, m := range ms {
		out = append(out, message{Role: string(m.Role), Content: textOf(m.Parts)})
	}
	return out
}

func textOf(parts []llms.ContentPart) string {
	var s string
	for _, p := range parts {
		switch v := p.(type) {
		case llms.TextContent:
			s += v.Text
		case *llms.TextContent:
			s += v.Text
		}
	}
	return s
}

func contentValue(res *llms.ContentResponse) string {
	if res == nil || len(res.Choices) == 0 || res.Choices[0] == nil {
		return ""
	}
	return res.Choices[0].Content
}
