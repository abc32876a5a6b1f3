// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (the OpenAI speech API or
// a locally-running Coqui TTS server) and performs batch synthesis: one
// complete reply text in, one buffer of raw PCM out. The pipeline owns
// playback, chunking, and interruption; providers only produce samples.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when Synthesize is called with no text.
var ErrEmptyText = errors.New("tts: empty text")

// Result is one synthesised utterance.
type Result struct {
	// PCM is raw little-endian 16-bit mono audio.
	PCM []byte

	// SampleRate is the rate of PCM in Hz. Providers emit at their native
	// rate; the playback device is opened to match.
	SampleRate int
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Name identifies the backend in logs and metrics (e.g. "openai",
	// "coqui").
	Name() string

	// Synthesize converts text into audio. Returns an error if the provider
	// cannot be reached, rejects the text, or ctx is cancelled. Callers
	// treat any error as "try the next provider in the chain".
	Synthesize(ctx context.Context, text string) (*Result, error)

	// Close releases provider resources. Safe to call more than once.
	Close() error
}
