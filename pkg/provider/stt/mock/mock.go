// Package mock provides a scriptable stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxkit-dev/voxkit/pkg/provider/stt"
)

var _ stt.Provider = (*Provider)(nil)

// Call records one Transcribe invocation.
type Call struct {
	PCM []byte
}

// Provider returns scripted transcripts in order. When the script runs out
// it keeps returning the last entry. Safe for concurrent use.
type Provider struct {
	mu      sync.Mutex
	name    string
	script  []string
	pos     int
	err     error
	delayFn func()
	calls   []Call
	closed  bool
}

// New returns a Provider that replays script in order.
func New(script ...string) *Provider {
	return &Provider{name: "mock", script: script}
}

// NewError returns a Provider whose Transcribe always fails with err.
func NewError(err error) *Provider {
	return &Provider{name: "mock", err: err}
}

// WithName overrides the provider name reported to logs and metrics.
func (p *Provider) WithName(name string) *Provider {
	p.name = name
	return p
}

// WithDelay installs a hook invoked inside every Transcribe call, letting
// tests stall recognition to exercise out-of-order completion.
func (p *Provider) WithDelay(fn func()) *Provider {
	p.delayFn = fn
	return p
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return p.name }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	p.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.calls = append(p.calls, Call{PCM: cp})
	err := p.err
	var text string
	if len(p.script) > 0 {
		text = p.script[p.pos]
		if p.pos < len(p.script)-1 {
			p.pos++
		}
	}
	delay := p.delayFn
	p.mu.Unlock()

	if delay != nil {
		delay()
	}
	if err != nil {
		return "", err
	}
	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	return text, nil
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close implements stt.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
