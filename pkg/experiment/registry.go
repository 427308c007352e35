package experiment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

var ErrUnsupportedProvider = errors.New("unsupported model provider")

// ProviderConfig is what a Factory needs to construct a chat model.
type ProviderConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	// Options is the full model configuration with nil values removed.
	Options map[string]any
}

// Factory constructs a chat model for one provider.
type Factory func(ctx context.Context, cfg ProviderConfig) (llms.Model, error)

// Registry maps provider names and SDK class names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	names     map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		names:     map[string]string{},
	}
}

// DefaultRegistry returns a registry with the langchaingo providers
// registered: openai, anthropic, googleai and ollama.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("openai", newOpenAI, "ChatOpenAI")
	r.Register("anthropic", newAnthropic, "claude", "ChatAnthropic")
	r.Register("googleai", newGoogleAI, "google", "gemini", "google_genai", "ChatGoogleGenerativeAI")
	r.Register("ollama", newOllama, "ChatOllama")
	return r
}

// Register adds f under name and any aliases. Later registrations win.
func (r *Registry) Register(name string, f Factory, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalize(name)
	r.factories[key] = f
	r.names[key] = name
	for _, a := range aliases {
		r.factories[normalize(a)] = f
		r.names[normalize(a)] = name
	}
}

// Lookup finds the factory for provider, falling back to className. It
// returns the canonical provider name alongside the factory.
func (r *Registry) Lookup(provider, className string) (Factory, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, candidate := range []string{provider, className} {
		if candidate == "" {
			continue
		}
		if f, ok := r.factories[normalize(candidate)]; ok {
			return f, r.names[normalize(candidate)], nil
		}
	}
	return nil, "", fmt.Errorf("%w: %q (class %q)", ErrUnsupportedProvider, provider, className)
}

// Providers lists the canonical provider names.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, n := range r.names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// normalize folds case and drops separators so "Google-GenAI" and
// "google_genai" match.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
