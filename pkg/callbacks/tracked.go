package callbacks

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
)

type startKey struct{}

func withStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startKey{}, t)
}

func startTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startKey{}).(time.Time)
	return t, ok
}

// TrackedModel drives Handler around every generation of the wrapped model,
// whether or not the provider invokes callbacks itself.
type TrackedModel struct {
	llms.Model
	Handler callbacks.Handler
}

var _ llms.Model = (*TrackedModel)(nil)

// Track wraps m. A nil handler returns m unchanged.
func Track(m llms.Model, h callbacks.Handler) llms.Model {
	if h == nil {
		return m
	}
	return &TrackedModel{Model: m, Handler: h}
}

func (m *TrackedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	ctx = withStartTime(ctx, time.Now())
	m.Handler.HandleLLMGenerateContentStart(ctx, messages)

	resp, err := m.Model.GenerateContent(ctx, messages, options...)
	if err != nil {
		m.Handler.HandleLLMError(ctx, err)
		return nil, err
	}
	m.Handler.HandleLLMGenerateContentEnd(ctx, resp)
	return resp, nil
}

func (m *TrackedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}
