// Package mock provides a scriptable tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxkit-dev/voxkit/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// Provider returns a fixed PCM buffer for every Synthesize call and records
// the texts it was asked to speak. Safe for concurrent use.
type Provider struct {
	mu         sync.Mutex
	name       string
	pcm        []byte
	sampleRate int
	err        error
	delayFn    func()
	texts      []string
	closed     bool
}

// New returns a Provider that emits pcm at sampleRate for every call.
func New(pcm []byte, sampleRate int) *Provider {
	return &Provider{name: "mock", pcm: pcm, sampleRate: sampleRate}
}

// NewError returns a Provider whose Synthesize always fails with err.
func NewError(err error) *Provider {
	return &Provider{name: "mock", err: err}
}

// WithName overrides the provider name reported to logs and metrics.
func (p *Provider) WithName(name string) *Provider {
	p.name = name
	return p
}

// WithDelay installs a hook invoked inside every Synthesize call.
func (p *Provider) WithDelay(fn func()) *Provider {
	p.delayFn = fn
	return p
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return p.name }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	err := p.err
	pcm := p.pcm
	rate := p.sampleRate
	delay := p.delayFn
	p.mu.Unlock()

	if delay != nil {
		delay()
	}
	if err != nil {
		return nil, err
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	out := make([]byte, len(pcm))
	copy(out, pcm)
	return &tts.Result{PCM: out, SampleRate: rate}, nil
}

// Texts returns a copy of every text passed to Synthesize.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close implements tts.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
