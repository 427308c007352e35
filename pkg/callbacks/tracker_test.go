package callbacks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"
)

type fakeSink struct {
	mu      sync.Mutex
	inputs  []any
	outputs []any
	usages  []any
	err     error
}

func (s *fakeSink) InsertChatInput(_ context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, v)
	return s.err
}

func (s *fakeSink) InsertChatOutput(_ context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, v)
	return s.err
}

func (s *fakeSink) InsertChatUsage(_ context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usages = append(s.usages, v)
	return s.err
}

type fakeRecorder struct {
	records []UsageRecord
	err     error
}

func (r *fakeRecorder) RecordUsage(_ context.Context, rec UsageRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

type fakeModel struct {
	reply string
	info  map[string]any
	err   error
	seen  [][]llms.MessageContent
}

func (m *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.seen = append(m.seen, msgs)
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply, GenerationInfo: m.info}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

var testTreatment = Treatment{
	ExperimentID:  "exp-1",
	TreatmentID:   "t-1",
	TreatmentName: "formal",
	SessionID:     "sess-1",
	ModelName:     "gpt-4o",
}

func TestUsageTracker_ReportsInputOutputAndUsage(t *testing.T) {
	sink := &fakeSink{}
	rec := &fakeRecorder{}
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tracker := NewUsageTracker(sink, testTreatment, WithRecorder(rec), withClock(func() time.Time { return clock }))

	ctx := context.Background()
	tracker.HandleLLMGenerateContentStart(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "Be formal."),
		llms.TextParts(llms.ChatMessageTypeHuman, "hello"),
	})
	clock = clock.Add(250 * time.Millisecond)
	tracker.HandleLLMGenerateContentEnd(ctx, &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "Good day.",
		GenerationInfo: map[string]any{"PromptTokens": 12, "CompletionTokens": 3, "TotalTokens": 15},
	}}})

	if len(sink.inputs) != 1 || len(sink.outputs) != 1 || len(sink.usages) != 1 {
		t.Fatalf("expected one event of each kind, got in=%d out=%d usage=%d", len(sink.inputs), len(sink.outputs), len(sink.usages))
	}

	in := sink.inputs[0].(map[string]any)
	msgs := in["messages"].([]message)
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Content != "hello" {
		t.Errorf("unexpected messages %+v", msgs)
	}
	if in["treatment_id"] != "t-1" || in["session_id"] != "sess-1" {
		t.Errorf("input missing treatment metadata: %v", in)
	}

	out := sink.outputs[0].(map[string]any)
	if out["content"] != "Good day." {
		t.Errorf("output content = %v", out["content"])
	}

	if len(rec.records) != 1 {
		t.Fatalf("expected one usage record, got %d", len(rec.records))
	}
	r := rec.records[0]
	if r.Usage != (Usage{InputTokens: 12, OutputTokens: 3, TotalTokens: 15}) {
		t.Errorf("usage = %+v", r.Usage)
	}
	if r.Latency != 250*time.Millisecond {
		t.Errorf("latency = %v", r.Latency)
	}
	if r.ExperimentID != "exp-1" || r.ModelName != "gpt-4o" || !r.RecordedAt.Equal(clock) {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestUsageTracker_ErrorsDoNotPropagate(t *testing.T) {
	sink := &fakeSink{err: errors.New("dashboard down")}
	rec := &fakeRecorder{err: errors.New("disk full")}
	tracker := NewUsageTracker(sink, testTreatment, WithRecorder(rec))

	model := Track(&fakeModel{reply: "ok"}, tracker)
	got, err := model.Call(context.Background(), "hi")
	if err != nil {
		t.Fatalf("tracking failures must not fail the call: %v", err)
	}
	if got != "ok" {
		t.Errorf("Call() = %q", got)
	}
	if len(rec.records) != 1 {
		t.Errorf("recorder should still be called, got %d records", len(rec.records))
	}
}

func TestUsageTracker_NilSinkStillRecords(t *testing.T) {
	rec := &fakeRecorder{}
	tracker := NewUsageTracker(nil, testTreatment, WithRecorder(rec), WithRecorder(nil))

	tracker.HandleLLMGenerateContentStart(context.Background(), nil)
	tracker.HandleLLMGenerateContentEnd(context.Background(), &llms.ContentResponse{})

	if len(rec.records) != 1 {
		t.Fatalf("expected one record, got %d", len(rec.records))
	}
}

func TestTrackedModel_ModelError(t *testing.T) {
	sink := &fakeSink{}
	boom := errors.New("rate limited")
	model := Track(&fakeModel{err: boom}, NewUsageTracker(sink, testTreatment))

	_, err := model.GenerateContent(context.Background(), []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "hi")})
	if !errors.Is(err, boom) {
		t.Fatalf("expected model error, got %v", err)
	}
	if len(sink.inputs) != 1 {
		t.Errorf("input should be logged before the call, got %d", len(sink.inputs))
	}
	if len(sink.outputs) != 0 || len(sink.usages) != 0 {
		t.Errorf("no output or usage on error, got out=%d usage=%d", len(sink.outputs), len(sink.usages))
	}
}

func TestTrackedModel_LatencyFromContext(t *testing.T) {
	rec := &fakeRecorder{}
	model := Track(&fakeModel{reply: "ok"}, NewUsageTracker(nil, testTreatment, WithRecorder(rec)))

	if _, err := model.Call(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if len(rec.records) != 1 || rec.records[0].Latency < 0 {
		t.Errorf("unexpected records %+v", rec.records)
	}
}

func TestTrack_NilHandler(t *testing.T) {
	m := &fakeModel{}
	if got := Track(m, nil); got != llms.Model(m) {
		t.Error("Track with nil handler should return the model unchanged")
	}
}
