// Package mock provides a scriptable vad.Detector for tests.
package mock

import (
	"sync"

	"github.com/voxkit-dev/voxkit/pkg/provider/vad"
)

var _ vad.Detector = (*Detector)(nil)

// Detector replays a scripted sequence of probabilities, one per frame.
// When the script runs out it keeps returning the last entry, or 0 if the
// script is empty. Safe for concurrent use.
type Detector struct {
	mu     sync.Mutex
	script []float64
	pos    int
	err    error
	calls  int
	closed bool
}

// New returns a Detector that replays script in order.
func New(script ...float64) *Detector {
	return &Detector{script: script}
}

// NewError returns a Detector whose SpeechProb always fails with err.
func NewError(err error) *Detector {
	return &Detector{err: err}
}

// SpeechProb implements vad.Detector.
func (d *Detector) SpeechProb(pcm []byte) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return 0, d.err
	}
	if len(d.script) == 0 {
		return 0, nil
	}
	p := d.script[d.pos]
	if d.pos < len(d.script)-1 {
		d.pos++
	}
	return p, nil
}

// Append extends the script with more probabilities.
func (d *Detector) Append(probs ...float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, probs...)
}

// Calls reports how many frames were scored.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Closed reports whether Close was called.
func (d *Detector) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close implements vad.Detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
