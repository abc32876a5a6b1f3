// Package mock provides a scriptable llm.Reasoner for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxkit-dev/voxkit/pkg/provider/llm"
)

var _ llm.Reasoner = (*Reasoner)(nil)

// Reasoner echoes scripted replies and records the texts it received.
// Safe for concurrent use.
type Reasoner struct {
	mu     sync.Mutex
	script []string
	pos    int
	err    error
	inputs []string
}

// New returns a Reasoner that replays script in order, repeating the last
// entry when the script runs out.
func New(script ...string) *Reasoner {
	return &Reasoner{script: script}
}

// NewError returns a Reasoner whose Process always fails with err.
func NewError(err error) *Reasoner {
	return &Reasoner{err: err}
}

// Process implements llm.Reasoner.
func (r *Reasoner) Process(ctx context.Context, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, text)
	if r.err != nil {
		return "", r.err
	}
	if len(r.script) == 0 {
		return "", nil
	}
	reply := r.script[r.pos]
	if r.pos < len(r.script)-1 {
		r.pos++
	}
	return reply, nil
}

// Inputs returns a copy of every text passed to Process.
func (r *Reasoner) Inputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.inputs))
	copy(out, r.inputs)
	return out
}

// Close implements llm.Reasoner.
func (r *Reasoner) Close() error { return nil }
