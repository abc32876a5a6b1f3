// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (a hosted Whisper API, a
// local whisper.cpp server, or the in-process whisper.cpp bindings) and
// exposes uniform batch transcription: one complete utterance of PCM audio
// in, one transcript out. The pipeline hands providers whole utterances cut
// by the segmenter rather than streaming frames, so there is no session to
// manage.
//
// Implementations must be safe for concurrent use: the pipeline runs a small
// pool of recognition workers that may call Transcribe in parallel.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned when Transcribe is called with no samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Name identifies the backend in logs and metrics (e.g. "openai",
	// "whisper-server", "whisper-cpp").
	Name() string

	// Transcribe converts one utterance of raw little-endian 16-bit mono PCM
	// at 16 kHz into text. The returned string is the provider's raw output;
	// normalization and hallucination filtering happen downstream.
	//
	// Returns an error if the provider cannot be reached, rejects the audio,
	// or ctx is cancelled. Callers treat any error as "try the next provider
	// in the chain".
	Transcribe(ctx context.Context, pcm []byte) (string, error)

	// Close releases provider resources (connections, loaded models).
	// Safe to call more than once.
	Close() error
}
