package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxkit-dev/voxkit/internal/observe"
	"github.com/voxkit-dev/voxkit/pkg/audio"
	"github.com/voxkit-dev/voxkit/pkg/provider/tts"
)

// ErrInterrupted is returned by [Synthesizer.Speak] when playback was cut
// short, either by barge-in or an explicit Stop.
var ErrInterrupted = errors.New("voice: playback interrupted")

// Synthesizer renders text through a TTS provider (usually a fallback
// chain) and plays it on an output device. Playback is chunked so an
// interrupt takes effect within one chunk rather than after the whole
// utterance.
//
// Each synthesis result is written to a temporary WAV file before playback
// and removed afterwards on every exit path. The file gives post-mortem
// debugging a concrete artifact when playback misbehaves without leaving
// audio on disk during normal operation.
type Synthesizer struct {
	provider tts.Provider
	player   *audio.Player
	metrics  *observe.Metrics

	speaking atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSynthesizer wires provider to player. metrics may be nil, in which
// case the package-level default instruments are used.
func NewSynthesizer(provider tts.Provider, player *audio.Player, metrics *observe.Metrics) *Synthesizer {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Synthesizer{provider: provider, player: player, metrics: metrics}
}

// Speak synthesizes text and blocks until playback completes. It returns
// [ErrInterrupted] when the turn was cut short and nil when the full
// utterance was played. Empty text is a no-op.
//
// The speaking flag covers generation as well as playback: barge-in during
// a slow provider call must interrupt the turn, not just audible output.
// Stop cancels a per-turn context that both the provider call and the
// chunked playback loop observe, so an interrupt issued at any point after
// Speak begins takes effect.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	s.speaking.Store(true)
	defer func() {
		s.speaking.Store(false)
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	start := time.Now()
	res, err := s.provider.Synthesize(ctx, text)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return fmt.Errorf("voice: synthesize: %w", err)
	}

	artifact, err := writeArtifact(res)
	if err != nil {
		observe.Logger(ctx).Warn("could not write synthesis artifact", "error", err)
	} else {
		defer os.Remove(artifact)
	}

	if err := s.player.Play(ctx, res.PCM, res.SampleRate); err != nil {
		if errors.Is(err, audio.ErrPlaybackStopped) {
			return ErrInterrupted
		}
		return fmt.Errorf("voice: playback: %w", err)
	}
	return nil
}

// Stop halts the current turn immediately, whether it is still synthesizing
// or already playing. Safe to call when nothing is in progress.
func (s *Synthesizer) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.player.Stop()
}

// Speaking reports whether playback is in progress.
func (s *Synthesizer) Speaking() bool {
	return s.speaking.Load()
}

// Close releases the provider and the playback device.
func (s *Synthesizer) Close() error {
	err := s.provider.Close()
	if cerr := s.player.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// writeArtifact stores the synthesis result as a temporary WAV file and
// returns its path. The caller owns removal.
func writeArtifact(res *tts.Result) (string, error) {
	f, err := os.CreateTemp("", "voxkit-tts-*.wav")
	if err != nil {
		return "", err
	}
	if err := audio.WriteWAV(f, res.PCM, res.SampleRate); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
