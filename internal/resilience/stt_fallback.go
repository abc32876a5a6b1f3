package resilience

import (
	"context"

	"github.com/voxkit-dev/voxkit/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across
// multiple STT backends. Each backend has its own circuit breaker, so a
// remote API outage degrades to the local whisper baseline without stalling
// recognition.
type STTFallback struct {
	group  *FallbackGroup[stt.Provider]
	closer []stt.Provider
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group:  NewFallbackGroup(primary, primary.Name(), cfg),
		closer: []stt.Provider{primary},
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(provider stt.Provider) {
	f.group.Add(provider.Name(), provider)
	f.closer = append(f.closer, provider)
}

// OnSkip installs a hook invoked when a backend fails or is skipped.
func (f *STTFallback) OnSkip(fn func(name string, err error)) {
	f.group.OnSkip(fn)
}

// Name implements stt.Provider.
func (f *STTFallback) Name() string { return "stt-fallback" }

// Transcribe runs the utterance through the first healthy backend.
func (f *STTFallback) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, pcm)
	})
}

// Close closes every registered backend and returns the first error.
func (f *STTFallback) Close() error {
	var first error
	for _, p := range f.closer {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
