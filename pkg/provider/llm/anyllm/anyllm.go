// Package anyllm implements llm.Reasoner on top of
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// more.
//
// Usage:
//
//	r, err := anyllm.New("openai", "gpt-4o-mini",
//	    anyllm.WithSystemPrompt("You are a voice assistant. Keep replies short."),
//	)
package anyllm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/voxkit-dev/voxkit/pkg/provider/llm"
)

// defaultMaxTurns bounds the rolling conversation history so that a long
// session cannot grow the prompt without limit.
const defaultMaxTurns = 20

var _ llm.Reasoner = (*Reasoner)(nil)

// Option is a functional option for configuring a Reasoner.
type Option func(*Reasoner)

// WithSystemPrompt sets the system message prepended to every completion.
func WithSystemPrompt(prompt string) Option {
	return func(r *Reasoner) { r.systemPrompt = prompt }
}

// WithMaxTurns bounds how many past user/assistant exchanges are kept in the
// prompt. Defaults to 20.
func WithMaxTurns(n int) Option {
	return func(r *Reasoner) { r.maxTurns = n }
}

// WithBackendOptions forwards raw any-llm-go options (API key, base URL) to
// the backend constructor.
func WithBackendOptions(opts ...anyllmlib.Option) Option {
	return func(r *Reasoner) { r.backendOpts = opts }
}

// Reasoner implements llm.Reasoner with a rolling chat history.
type Reasoner struct {
	backend anyllmlib.Provider
	model   string

	systemPrompt string
	maxTurns     int
	backendOpts  []anyllmlib.Option

	mu      sync.Mutex
	history []anyllmlib.Message
}

// New creates a Reasoner backed by the named LLM provider.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp". model is the specific model to
// use (e.g., "gpt-4o-mini", "claude-3-5-haiku-latest"). Without a
// WithBackendOptions API key, the backend falls back to its environment
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, etc.).
func New(providerName, model string, opts ...Option) (*Reasoner, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}
	r := &Reasoner{model: model, maxTurns: defaultMaxTurns}
	for _, o := range opts {
		o(r)
	}

	backend, err := createBackend(providerName, r.backendOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	r.backend = backend
	return r, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp", providerName)
	}
}

// Process implements llm.Reasoner. The user text is appended to the rolling
// history, the completion is requested, and the assistant reply is recorded
// before being returned.
func (r *Reasoner) Process(ctx context.Context, text string) (string, error) {
	r.mu.Lock()
	var messages []anyllmlib.Message
	if r.systemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: r.systemPrompt,
		})
	}
	messages = append(messages, r.history...)
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: text,
	})
	r.mu.Unlock()

	resp, err := r.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model:    r.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}
	reply := resp.Choices[0].Message.ContentString()

	r.mu.Lock()
	r.history = append(r.history,
		anyllmlib.Message{Role: anyllmlib.RoleUser, Content: text},
		anyllmlib.Message{Role: anyllmlib.RoleAssistant, Content: reply},
	)
	// Two history entries per turn.
	if max := r.maxTurns * 2; len(r.history) > max {
		r.history = append(r.history[:0], r.history[len(r.history)-max:]...)
	}
	r.mu.Unlock()

	return reply, nil
}

// Reset clears the conversation history.
func (r *Reasoner) Reset() {
	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
}

// Close implements llm.Reasoner.
func (r *Reasoner) Close() error { return nil }
