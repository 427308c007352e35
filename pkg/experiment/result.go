package experiment

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/intura-ai/intura-go/pkg/callbacks"
	"github.com/intura-ai/intura-go/pkg/intura"
)

const (
	RoleSystem = llms.ChatMessageTypeSystem
	RoleHuman  = llms.ChatMessageTypeHuman
)

// Message is one entry of a chat template.
type Message struct {
	Role    llms.ChatMessageType
	Content string
}

// Result is a ready to use chat model for one treatment.
type Result struct {
	// Model reports every generation to Tracker.
	Model         llms.Model
	Provider      string
	Configuration map[string]any
	CallOptions   []llms.CallOption
	Templates     []Message
	Metadata      map[string]string
	Tracker       *callbacks.UsageTracker
	Treatment     intura.ChatModelConfig
}

// Messages returns the templates followed by userMessage.
func (r *Result) Messages(userMessage string) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(r.Templates)+1)
	for _, t := range r.Templates {
		if t.Content == "" {
			continue
		}
		out = append(out, llms.TextParts(t.Role, t.Content))
	}
	return append(out, llms.TextParts(RoleHuman, userMessage))
}

// Invoke sends userMessage after the templates, using the treatment's call
// options followed by opts.
func (r *Result) Invoke(ctx context.Context, userMessage string, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	callOpts := append(append([]llms.CallOption{}, r.CallOptions...), opts...)
	return r.Model.GenerateContent(ctx, r.Messages(userMessage), callOpts...)
}

// Chat is Invoke returning the text of the first choice.
func (r *Result) Chat(ctx context.Context, userMessage string, opts ...llms.CallOption) (string, error) {
	resp, err := r.Invoke(ctx, userMessage, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("treatment %s returned no choices", r.Treatment.TreatmentName)
	}
	return resp.Choices[0].Content, nil
}
