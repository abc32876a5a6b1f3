// Package segment cuts a classified frame stream into discrete utterances.
//
// The Segmenter is a two-state machine. It idles until the first speech
// frame, then accumulates every frame (speech and silence alike, so natural
// pauses inside a sentence are preserved) until it has seen a run of
// consecutive silence frames long enough to count as an endpoint. At the
// endpoint the buffered frames form one utterance.
//
// Utterances whose speech portion is too short are discarded rather than
// emitted: a cough or a door slam can trip the detector for a frame or two,
// and sending that to STT wastes a provider call and usually yields a
// hallucinated transcript. The speech portion is the buffer minus the
// trailing silence run that triggered the endpoint.
//
// The Segmenter is not safe for concurrent use. The pipeline drives it from
// its single frame-consumer goroutine.
package segment

import (
	"github.com/voxkit-dev/voxkit/pkg/audio"
)

const (
	// DefaultEndpointFrames is the consecutive-silence run that ends an
	// utterance. At 512 samples per frame and 16 kHz this is 480 ms.
	DefaultEndpointFrames = 15

	// DefaultMinSpeechFrames is the minimum speech portion an utterance
	// must have to be emitted.
	DefaultMinSpeechFrames = 5
)

// Config tunes the Segmenter. Zero values fall back to the defaults.
type Config struct {
	// EndpointFrames is the consecutive-silence count that triggers the
	// endpoint.
	EndpointFrames int

	// MinSpeechFrames is the minimum non-trailing-silence length for an
	// utterance to be emitted instead of discarded.
	MinSpeechFrames int

	// OnSpeechStart fires on the idle → accumulating transition, before
	// the first frame is buffered. The interrupt handler uses it to cut
	// off playback the moment the user starts talking.
	OnSpeechStart func()

	// OnUtterance receives each completed utterance. The frame slice is
	// owned by the callback; the Segmenter does not reuse it.
	OnUtterance func(frames []audio.Frame)

	// OnDiscard fires instead of OnUtterance when an utterance fails the
	// minimum-length check, with the number of speech frames it had.
	OnDiscard func(speechFrames int)
}

// Segmenter accumulates frames between speech onset and endpoint.
type Segmenter struct {
	cfg Config

	accumulating bool
	buffer       []audio.Frame
	silenceRun   int
}

// New returns a Segmenter for cfg.
func New(cfg Config) *Segmenter {
	if cfg.EndpointFrames <= 0 {
		cfg.EndpointFrames = DefaultEndpointFrames
	}
	if cfg.MinSpeechFrames <= 0 {
		cfg.MinSpeechFrames = DefaultMinSpeechFrames
	}
	return &Segmenter{cfg: cfg}
}

// Feed advances the state machine by one classified frame. Frames must
// arrive in capture order.
func (s *Segmenter) Feed(frame audio.Frame, isSpeech bool) {
	if !s.accumulating {
		if !isSpeech {
			return
		}
		if s.cfg.OnSpeechStart != nil {
			s.cfg.OnSpeechStart()
		}
		s.accumulating = true
		s.buffer = s.buffer[:0]
		s.silenceRun = 0
	}

	s.buffer = append(s.buffer, frame)
	if isSpeech {
		s.silenceRun = 0
		return
	}

	s.silenceRun++
	if s.silenceRun >= s.cfg.EndpointFrames {
		s.endpoint()
	}
}

// endpoint closes the current utterance and resets to idle.
func (s *Segmenter) endpoint() {
	speechFrames := len(s.buffer) - s.silenceRun

	if speechFrames < s.cfg.MinSpeechFrames {
		if s.cfg.OnDiscard != nil {
			s.cfg.OnDiscard(speechFrames)
		}
	} else if s.cfg.OnUtterance != nil {
		out := make([]audio.Frame, len(s.buffer))
		copy(out, s.buffer)
		s.cfg.OnUtterance(out)
	}

	s.accumulating = false
	s.buffer = s.buffer[:0]
	s.silenceRun = 0
}

// Accumulating reports whether an utterance is currently open.
func (s *Segmenter) Accumulating() bool {
	return s.accumulating
}

// Reset drops any partially accumulated utterance and returns to idle.
// Called on pipeline shutdown so a half-spoken sentence is not transcribed.
func (s *Segmenter) Reset() {
	s.accumulating = false
	s.buffer = s.buffer[:0]
	s.silenceRun = 0
}
