package resilience

import (
	"context"

	"github.com/voxkit-dev/voxkit/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple TTS backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group  *FallbackGroup[tts.Provider]
	closer []tts.Provider
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group:  NewFallbackGroup(primary, primary.Name(), cfg),
		closer: []tts.Provider{primary},
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(provider tts.Provider) {
	f.group.Add(provider.Name(), provider)
	f.closer = append(f.closer, provider)
}

// OnSkip installs a hook invoked when a backend fails or is skipped.
func (f *TTSFallback) OnSkip(fn func(name string, err error)) {
	f.group.OnSkip(fn)
}

// Name implements tts.Provider.
func (f *TTSFallback) Name() string { return "tts-fallback" }

// Synthesize renders text through the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*tts.Result, error) {
		return p.Synthesize(ctx, text)
	})
}

// Close closes every registered backend and returns the first error.
func (f *TTSFallback) Close() error {
	var first error
	for _, p := range f.closer {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
