package audio

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrPlaybackStopped is returned by Player.Play when playback was cancelled
// before all audio was written to the device.
var ErrPlaybackStopped = errors.New("audio: playback stopped")

// playChunkBytes is the size of each PCM chunk handed to the output device.
// Small chunks keep the cancellation latency of Stop low: at 16-bit mono
// 24 kHz, 4096 bytes is roughly 85 ms of audio.
const playChunkBytes = 4096

// OutputDevice abstracts the physical playback device so that tests can
// supply a fake. Implementations buffer written PCM internally and feed the
// hardware from that buffer.
type OutputDevice interface {
	// Start opens the device for the given PCM format.
	Start(sampleRate int) error

	// Write queues a PCM chunk for playback. It may block briefly for
	// pacing when the internal buffer is full.
	Write(pcm []byte) error

	// Drain blocks until all queued audio has been handed to the hardware.
	Drain() error

	// Reset discards any queued-but-unplayed audio immediately.
	Reset() error

	// Stop closes the device. Safe to call more than once.
	Stop() error
}

// Player streams PCM to an OutputDevice in small chunks, checking a
// cancellation flag between chunks so that Stop halts audible output
// promptly instead of merely flipping a flag the device never re-reads.
//
// Known limitation: audio already handed to the hardware buffer when Stop is
// called may still finish audibly; Reset only truncates what is queued on
// the software side.
type Player struct {
	dev       OutputDevice
	cancelled atomic.Bool
}

// NewPlayer creates a Player writing to dev.
func NewPlayer(dev OutputDevice) *Player {
	return &Player{dev: dev}
}

// Play writes pcm to the device in chunks and blocks until playback of the
// queued audio completes. It returns ErrPlaybackStopped when Stop was called
// or ctx was cancelled mid-stream; queued audio is discarded in that case.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	p.cancelled.Store(false)

	if err := p.dev.Start(sampleRate); err != nil {
		return err
	}

	for off := 0; off < len(pcm); off += playChunkBytes {
		if p.cancelled.Load() || ctx.Err() != nil {
			_ = p.dev.Reset()
			return ErrPlaybackStopped
		}
		end := off + playChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := p.dev.Write(pcm[off:end]); err != nil {
			return err
		}
	}

	if p.cancelled.Load() || ctx.Err() != nil {
		_ = p.dev.Reset()
		return ErrPlaybackStopped
	}
	return p.dev.Drain()
}

// Stop cancels the in-progress Play, if any, discarding queued audio. Safe
// to call from any goroutine, including concurrently with Play.
func (p *Player) Stop() {
	p.cancelled.Store(true)
	_ = p.dev.Reset()
}

// Close releases the underlying device.
func (p *Player) Close() error {
	return p.dev.Stop()
}
