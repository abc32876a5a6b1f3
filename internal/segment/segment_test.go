package segment_test

import (
	"testing"

	"github.com/voxkit-dev/voxkit/internal/segment"
	"github.com/voxkit-dev/voxkit/pkg/audio"
)

// feedPattern drives the segmenter with 's' (speech) and '.' (silence)
// frames. Each frame carries its index so tests can verify content.
func feedPattern(seg *segment.Segmenter, pattern string) {
	for i, c := range pattern {
		frame := audio.Frame{Data: []byte{byte(i), byte(i >> 8)}}
		seg.Feed(frame, c == 's')
	}
}

func TestSegmenterEmitsCompleteUtterance(t *testing.T) {
	var utterances [][]audio.Frame
	var onsets int
	seg := segment.New(segment.Config{
		EndpointFrames:  15,
		MinSpeechFrames: 5,
		OnSpeechStart:   func() { onsets++ },
		OnUtterance:     func(f []audio.Frame) { utterances = append(utterances, f) },
	})

	// 10 speech frames then sustained silence.
	feedPattern(seg, "ssssssssss....................")

	if onsets != 1 {
		t.Errorf("onsets = %d, want 1", onsets)
	}
	if len(utterances) != 1 {
		t.Fatalf("utterances = %d, want 1", len(utterances))
	}
	// 10 speech + 15 silence frames make up the utterance; silence past the
	// endpoint is ignored.
	if got := len(utterances[0]); got != 25 {
		t.Fatalf("utterance length = %d frames, want 25", got)
	}
	// Frames must be in capture order.
	for i, f := range utterances[0] {
		if int(f.Data[0]) != i {
			t.Fatalf("frame %d carries payload %d; order broken", i, f.Data[0])
		}
	}
	if seg.Accumulating() {
		t.Error("segmenter should be idle after endpoint")
	}
}

func TestSegmenterDiscardsShortBursts(t *testing.T) {
	var emitted, discarded int
	var discardedSpeech int
	seg := segment.New(segment.Config{
		EndpointFrames:  15,
		MinSpeechFrames: 5,
		OnUtterance:     func([]audio.Frame) { emitted++ },
		OnDiscard:       func(n int) { discarded++; discardedSpeech = n },
	})

	// 3 speech frames then 20 silence: too short to keep.
	feedPattern(seg, "sss....................")

	if emitted != 0 {
		t.Errorf("emitted = %d, want 0", emitted)
	}
	if discarded != 1 {
		t.Fatalf("discarded = %d, want 1", discarded)
	}
	if discardedSpeech != 3 {
		t.Errorf("discarded speech frames = %d, want 3", discardedSpeech)
	}
}

func TestSegmenterInternalPausesDoNotSplit(t *testing.T) {
	var utterances [][]audio.Frame
	seg := segment.New(segment.Config{
		EndpointFrames:  15,
		MinSpeechFrames: 5,
		OnUtterance:     func(f []audio.Frame) { utterances = append(utterances, f) },
	})

	// Speech with a 10-frame pause in the middle, then the real endpoint.
	feedPattern(seg, "ssssss..........ssssss...............")

	if len(utterances) != 1 {
		t.Fatalf("utterances = %d, want 1 (pause must not split)", len(utterances))
	}
	if got := len(utterances[0]); got != 37 {
		t.Errorf("utterance length = %d frames, want 37", got)
	}
}

func TestSegmenterMultipleUtterances(t *testing.T) {
	var utterances [][]audio.Frame
	var onsets int
	seg := segment.New(segment.Config{
		EndpointFrames:  3,
		MinSpeechFrames: 2,
		OnSpeechStart:   func() { onsets++ },
		OnUtterance:     func(f []audio.Frame) { utterances = append(utterances, f) },
	})

	feedPattern(seg, "sss...ss...")

	if onsets != 2 {
		t.Errorf("onsets = %d, want 2", onsets)
	}
	if len(utterances) != 2 {
		t.Fatalf("utterances = %d, want 2", len(utterances))
	}
	if len(utterances[0]) != 6 || len(utterances[1]) != 5 {
		t.Errorf("utterance lengths = %d, %d; want 6, 5",
			len(utterances[0]), len(utterances[1]))
	}
}

func TestSegmenterIdleSilenceIgnored(t *testing.T) {
	var onsets int
	seg := segment.New(segment.Config{
		OnSpeechStart: func() { onsets++ },
	})

	feedPattern(seg, "..........")

	if onsets != 0 {
		t.Errorf("onsets = %d, want 0", onsets)
	}
	if seg.Accumulating() {
		t.Error("segmenter must stay idle on silence")
	}
}

func TestSegmenterResetDropsPartialUtterance(t *testing.T) {
	var emitted int
	seg := segment.New(segment.Config{
		EndpointFrames:  3,
		MinSpeechFrames: 1,
		OnUtterance:     func([]audio.Frame) { emitted++ },
	})

	feedPattern(seg, "sssss")
	seg.Reset()
	if seg.Accumulating() {
		t.Fatal("Reset must return to idle")
	}
	// Endpoint-length silence after Reset must not emit the dropped frames.
	feedPattern(seg, "...")
	if emitted != 0 {
		t.Errorf("emitted = %d, want 0", emitted)
	}
}
