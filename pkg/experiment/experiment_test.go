package experiment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/intura-ai/intura-go/pkg/callbacks"
	"github.com/intura-ai/intura-go/pkg/intura"
)

type fakeClient struct {
	mu       sync.Mutex
	configs  []intura.ChatModelConfig
	err      error
	features map[string]any
	inputs   []any
	outputs  []any
	usages   []any
}

func (c *fakeClient) BuildChatModel(_ context.Context, _ string, features map[string]any) ([]intura.ChatModelConfig, error) {
	c.features = features
	return c.configs, c.err
}

func (c *fakeClient) InsertChatInput(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, v)
	return nil
}

func (c *fakeClient) InsertChatOutput(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs = append(c.outputs, v)
	return nil
}

func (c *fakeClient) InsertChatUsage(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usages = append(c.usages, v)
	return nil
}

type stubModel struct {
	cfg  ProviderConfig
	seen []llms.MessageContent
}

func (m *stubModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.seen = msgs
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "hello from " + m.cfg.Model,
		GenerationInfo: map[string]any{"PromptTokens": 3, "CompletionTokens": 4},
	}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

type recorderFunc func(callbacks.UsageRecord)

func (f recorderFunc) RecordUsage(_ context.Context, rec callbacks.UsageRecord) error {
	f(rec)
	return nil
}

func stubRegistry(built *[]*stubModel) *Registry {
	r := NewRegistry()
	r.Register("openai", func(_ context.Context, cfg ProviderConfig) (llms.Model, error) {
		m := &stubModel{cfg: cfg}
		*built = append(*built, m)
		return m, nil
	}, "ChatOpenAI")
	r.Register("broken", func(context.Context, ProviderConfig) (llms.Model, error) {
		return nil, errors.New("no credentials")
	})
	return r
}

func treatment(id, provider, model string) intura.ChatModelConfig {
	return intura.ChatModelConfig{
		TreatmentID:   id,
		TreatmentName: "treatment " + id,
		ModelProvider: provider,
		Prompt:        "You are helpful.",
		ModelConfiguration: map[string]any{
			"model":       model,
			"temperature": 0.2,
			"api_key":     nil,
		},
	}
}

func TestBuild_SingleModel(t *testing.T) {
	var built []*stubModel
	client := &fakeClient{configs: []intura.ChatModelConfig{
		treatment("t1", "openai", "gpt-4o"),
		treatment("t2", "openai", "gpt-4o-mini"),
	}}
	exp := New(client, WithRegistry(stubRegistry(&built)))

	res, err := exp.BuildOne(context.Background(), "exp-1", WithSessionID("sess-1"))
	if err != nil {
		t.Fatalf("BuildOne() error = %v", err)
	}
	if len(built) != 1 {
		t.Fatalf("built %d models, want 1", len(built))
	}
	if exp.ChosenModel() != "gpt-4o" {
		t.Errorf("ChosenModel() = %q, want gpt-4o", exp.ChosenModel())
	}
	if _, ok := res.Configuration["api_key"]; ok {
		t.Error("nil configuration value was not removed")
	}
	if res.Provider != "openai" {
		t.Errorf("Provider = %q", res.Provider)
	}
	want := map[string]string{
		"experiment_id":  "exp-1",
		"treatment_id":   "t1",
		"treatment_name": "treatment t1",
		"session_id":     "sess-1",
	}
	for k, v := range want {
		if res.Metadata[k] != v {
			t.Errorf("Metadata[%s] = %q, want %q", k, res.Metadata[k], v)
		}
	}
	if len(res.Templates) != 1 || res.Templates[0].Role != RoleSystem || res.Templates[0].Content != "You are helpful." {
		t.Errorf("Templates = %+v", res.Templates)
	}
	if len(client.features) != 0 || client.features == nil {
		t.Errorf("features = %v, want empty map", client.features)
	}
}

func TestBuild_GeneratesSessionID(t *testing.T) {
	var built []*stubModel
	client := &fakeClient{configs: []intura.ChatModelConfig{treatment("t1", "openai", "gpt-4o")}}
	exp := New(client, WithRegistry(stubRegistry(&built)))

	res, err := exp.BuildOne(context.Background(), "exp-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Metadata["session_id"]) != 36 {
		t.Errorf("session_id = %q, want a uuid", res.Metadata["session_id"])
	}
}

func TestBuild_SkipsUnknownAndFailingProviders(t *testing.T) {
	var built []*stubModel
	client := &fakeClient{configs: []intura.ChatModelConfig{
		treatment("t1", "mystery", "m1"),
		treatment("t2", "broken", "m2"),
		treatment("t3", "openai", "gpt-4o"),
	}}
	exp := New(client, WithRegistry(stubRegistry(&built)))

	results, err := exp.Build(context.Background(), "exp-1", WithMaxModels(3))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(results) != 1 || results[0].Treatment.TreatmentID != "t3" {
		t.Fatalf("results = %+v, want only t3", results)
	}
	if exp.ChosenModel() != "" {
		t.Errorf("ChosenModel() = %q with max models 3", exp.ChosenModel())
	}
}

func TestBuild_FallsBackToClassName(t *testing.T) {
	var built []*stubModel
	cfg := treatment("t1", "", "gpt-4o")
	cfg.SDKConfig = intura.SDKConfig{ModulePath: "langchain_openai", ClassName: "ChatOpenAI"}
	exp := New(&fakeClient{configs: []intura.ChatModelConfig{cfg}}, WithRegistry(stubRegistry(&built)))

	if _, err := exp.BuildOne(context.Background(), "exp-1"); err != nil {
		t.Fatalf("BuildOne() error = %v", err)
	}
	if len(built) != 1 || built[0].cfg.Model != "gpt-4o" {
		t.Errorf("built = %+v", built)
	}
}

func TestBuild_NoModels(t *testing.T) {
	var built []*stubModel
	tests := []struct {
		name    string
		configs []intura.ChatModelConfig
	}{
		{"empty", nil},
		{"all unsupported", []intura.ChatModelConfig{treatment("t1", "mystery", "m1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := New(&fakeClient{configs: tt.configs}, WithRegistry(stubRegistry(&built)))
			_, err := exp.Build(context.Background(), "exp-1")
			if !errors.Is(err, ErrNoModels) {
				t.Errorf("Build() error = %v, want ErrNoModels", err)
			}
		})
	}
}

func TestBuild_RemoteFailure(t *testing.T) {
	remote := &intura.APIError{Endpoint: "build_chat_model", StatusCode: 500}
	exp := New(&fakeClient{err: remote}, WithRegistry(NewRegistry()))

	_, err := exp.Build(context.Background(), "exp-1")
	var apiErr *intura.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Errorf("Build() error = %v, want the API error", err)
	}
	if errors.Is(err, ErrNoModels) {
		t.Error("remote failure reported as ErrNoModels")
	}
}

func TestResult_ChatTracksUsage(t *testing.T) {
	var (
		built   []*stubModel
		records []callbacks.UsageRecord
	)
	client := &fakeClient{configs: []intura.ChatModelConfig{treatment("t1", "openai", "gpt-4o")}}
	exp := New(client,
		WithRegistry(stubRegistry(&built)),
		WithRecorder(recorderFunc(func(r callbacks.UsageRecord) { records = append(records, r) })),
	)

	res, err := exp.BuildOne(context.Background(), "exp-1", WithSessionID("sess-1"))
	if err != nil {
		t.Fatal(err)
	}
	answer, err := res.Chat(context.Background(), "Hi there")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if answer != "hello from gpt-4o" {
		t.Errorf("Chat() = %q", answer)
	}

	seen := built[0].seen
	if len(seen) != 2 || seen[0].Role != RoleSystem || seen[1].Role != RoleHuman {
		t.Fatalf("messages = %+v, want system then human", seen)
	}
	if len(client.inputs) != 1 || len(client.outputs) != 1 || len(client.usages) != 1 {
		t.Errorf("events: inputs %d outputs %d usages %d, want 1 each",
			len(client.inputs), len(client.outputs), len(client.usages))
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Usage.TotalTokens != 7 || records[0].SessionID != "sess-1" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestResult_MessagesSkipsEmptyPrompt(t *testing.T) {
	r := &Result{Templates: []Message{{Role: RoleSystem}}}
	msgs := r.Messages("question")
	if len(msgs) != 1 || msgs[0].Role != RoleHuman {
		t.Errorf("Messages() = %+v", msgs)
	}
}

func TestCallOptions(t *testing.T) {
	opts := callOptions(map[string]any{
		"temperature": 0.5,
		"max_tokens":  float64(256),
		"top_p":       0.9,
		"stop":        []any{"END"},
	})
	var co llms.CallOptions
	for _, o := range opts {
		o(&co)
	}
	if co.Temperature != 0.5 || co.MaxTokens != 256 || co.TopP != 0.9 {
		t.Errorf("CallOptions = %+v", co)
	}
	if len(co.StopWords) != 1 || co.StopWords[0] != "END" {
		t.Errorf("StopWords = %v", co.StopWords)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		provider, class string
		want            string
		wantErr         bool
	}{
		{"openai", "", "openai", false},
		{"Google-GenAI", "", "googleai", false},
		{"gemini", "", "googleai", false},
		{"", "ChatAnthropic", "anthropic", false},
		{"unknown", "ChatOllama", "ollama", false},
		{"unknown", "", "", true},
	}
	for _, tt := range tests {
		_, got, err := r.Lookup(tt.provider, tt.class)
		if (err != nil) != tt.wantErr {
			t.Errorf("Lookup(%q, %q) error = %v", tt.provider, tt.class, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnsupportedProvider) {
			t.Errorf("Lookup(%q) error = %v, want ErrUnsupportedProvider", tt.provider, err)
		}
		if got != tt.want {
			t.Errorf("Lookup(%q, %q) = %q, want %q", tt.provider, tt.class, got, tt.want)
		}
	}
	if got := r.Providers(); len(got) != 4 {
		t.Errorf("Providers() = %v", got)
	}
}

func TestBuildOne_LeavesCallerOptionsAlone(t *testing.T) {
	var built []*stubModel
	client := &fakeClient{configs: []intura.ChatModelConfig{
		treatment("t1", "openai", "gpt-4o"),
		treatment("t2", "openai", "gpt-4o-mini"),
	}}
	exp := New(client, WithRegistry(stubRegistry(&built)))

	// Spare capacity past len(opts) must not be written by BuildOne.
	backing := make([]BuildOption, 2, 3)
	backing[0] = WithSessionID("sess-1")
	backing[1] = WithFeatures(map[string]any{"tier": "pro"})
	sentinel := WithMaxModels(2)
	backing = append(backing, sentinel)
	opts := backing[:2]

	if _, err := exp.BuildOne(context.Background(), "exp-1", opts...); err != nil {
		t.Fatalf("BuildOne() error = %v", err)
	}

	var cfg buildConfig
	backing[2](&cfg)
	if cfg.maxModels != 2 {
		t.Errorf("BuildOne overwrote the caller's backing array: maxModels = %d", cfg.maxModels)
	}
}
