package voice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxkit-dev/voxkit/internal/voice"
	"github.com/voxkit-dev/voxkit/internal/wakeword"
	"github.com/voxkit-dev/voxkit/pkg/audio"
	"github.com/voxkit-dev/voxkit/pkg/provider/stt"
	sttmock "github.com/voxkit-dev/voxkit/pkg/provider/stt/mock"
	ttsmock "github.com/voxkit-dev/voxkit/pkg/provider/tts/mock"
	"github.com/voxkit-dev/voxkit/pkg/provider/vad"
	vadmock "github.com/voxkit-dev/voxkit/pkg/provider/vad/mock"
)

const testBlockSize = 4 // samples per frame, keeps test fixtures tiny

// slowOutput is an OutputDevice whose writes take a little while, giving
// barge-in tests a window to interrupt playback.
type slowOutput struct {
	mu       sync.Mutex
	writes   int
	resets   int
	perWrite time.Duration
}

func (o *slowOutput) Start(sampleRate int) error { return nil }

func (o *slowOutput) Write(pcm []byte) error {
	o.mu.Lock()
	o.writes++
	d := o.perWrite
	o.mu.Unlock()
	time.Sleep(d)
	return nil
}

func (o *slowOutput) Drain() error { return nil }

func (o *slowOutput) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets++
	return nil
}

func (o *slowOutput) Stop() error { return nil }

// pattern builds PCM covering one frame per rune: 's' frames score as
// speech, '.' frames as silence, in lockstep with the detector script.
func pattern(det *vadmock.Detector, runes string) []byte {
	pcm := make([]byte, 0, len(runes)*testBlockSize*2)
	for _, r := range runes {
		if r == 's' {
			det.Append(0.9)
		} else {
			det.Append(0.1)
		}
		pcm = append(pcm, make([]byte, testBlockSize*2)...)
	}
	return pcm
}

type testRig struct {
	pipeline *voice.Pipeline
	det      *vadmock.Detector
	synth    *voice.Synthesizer
	out      *slowOutput
}

func newRig(t *testing.T, transcriber stt.Provider, gate *wakeword.Gate) *testRig {
	t.Helper()

	det := vadmock.New()
	out := &slowOutput{perWrite: 5 * time.Millisecond}
	synth := voice.NewSynthesizer(ttsmock.New(make([]byte, 64*1024), 24000), audio.NewPlayer(out), nil)

	p, err := voice.New(voice.Config{
		Source:          audio.NewSource(audio.SourceConfig{BlockSize: testBlockSize, QueueDepth: 1024}, nil),
		Classifier:      vad.NewClassifier(det, 0.5, testBlockSize),
		Transcriber:     transcriber,
		Synthesizer:     synth,
		Gate:            gate,
		EndpointFrames:  3,
		MinSpeechFrames: 2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testRig{pipeline: p, det: det, synth: synth, out: out}
}

func TestPipelineDeliversTranscript(t *testing.T) {
	rig := newRig(t, sttmock.New("Hello World"), nil)

	got := make(chan string, 4)
	if err := rig.pipeline.Start(context.Background(), func(text string) { got <- text }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.pipeline.Stop()

	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))

	select {
	case text := <-got:
		if text != "hello world" {
			t.Fatalf("transcript = %q, want normalized %q", text, "hello world")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no transcript delivered")
	}
}

func TestPipelineStartAsync(t *testing.T) {
	rig := newRig(t, sttmock.New("testing one two"), nil)

	out, err := rig.pipeline.StartAsync(context.Background())
	if err != nil {
		t.Fatalf("StartAsync: %v", err)
	}

	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))

	select {
	case text := <-out:
		if text != "testing one two" {
			t.Fatalf("transcript = %q", text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no transcript on channel")
	}

	if err := rig.pipeline.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, open := <-out; open {
		t.Fatal("channel must be closed after Stop")
	}
}

func TestPipelineDropsHallucinations(t *testing.T) {
	rig := newRig(t, sttmock.New("Thank you."), nil)

	got := make(chan string, 4)
	if err := rig.pipeline.Start(context.Background(), func(text string) { got <- text }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.pipeline.Stop()

	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))

	select {
	case text := <-got:
		t.Fatalf("hallucination %q must not be delivered", text)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestPipelineWakeWordGate(t *testing.T) {
	gate := wakeword.New("voxkit")
	rig := newRig(t, sttmock.New("hello there", "voxkit turn on the lights"), gate)

	got := make(chan string, 4)
	if err := rig.pipeline.Start(context.Background(), func(text string) { got <- text }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.pipeline.Stop()

	// First utterance has no wake word, second does.
	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))
	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))

	select {
	case text := <-got:
		if text != "turn on the lights" {
			t.Fatalf("delivered %q, want the gated command only", text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("gated command never delivered")
	}

	select {
	case text := <-got:
		t.Fatalf("unexpected second delivery %q", text)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPipelineBargeInInterruptsPlayback(t *testing.T) {
	rig := newRig(t, sttmock.New("stop"), nil)

	if err := rig.pipeline.Start(context.Background(), func(string) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.pipeline.Stop()

	done := rig.pipeline.SpeakAsync(context.Background(), "a very long reply")

	// Wait for playback to actually start before speaking over it.
	deadline := time.Now().Add(time.Second)
	for !rig.pipeline.IsSpeaking() {
		if time.Now().After(deadline) {
			t.Fatal("playback never started")
		}
		time.Sleep(time.Millisecond)
	}

	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))

	select {
	case err := <-done:
		if !errors.Is(err, voice.ErrInterrupted) {
			t.Fatalf("Speak err = %v, want ErrInterrupted", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("playback was not interrupted")
	}
	if rig.pipeline.IsSpeaking() {
		t.Error("IsSpeaking still true after interrupt")
	}
}

func TestPipelineBargeInDuringSynthesis(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	det := vadmock.New()
	out := &slowOutput{perWrite: 5 * time.Millisecond}
	ttsProvider := ttsmock.New(make([]byte, 64*1024), 24000).WithDelay(func() {
		entered <- struct{}{}
		<-release
	})
	synth := voice.NewSynthesizer(ttsProvider, audio.NewPlayer(out), nil)

	p, err := voice.New(voice.Config{
		Source:          audio.NewSource(audio.SourceConfig{BlockSize: testBlockSize, QueueDepth: 1024}, nil),
		Classifier:      vad.NewClassifier(det, 0.5, testBlockSize),
		Transcriber:     sttmock.New("stop talking"),
		Synthesizer:     synth,
		EndpointFrames:  3,
		MinSpeechFrames: 2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(context.Background(), func(string) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	done := p.SpeakAsync(context.Background(), "a very long reply")

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("synthesis never started")
	}
	if !p.IsSpeaking() {
		t.Error("IsSpeaking must be true while the reply is being synthesized")
	}

	// The user talks over the reply before any audio has played.
	p.PushExternal(pattern(det, "ssss..."))
	time.Sleep(300 * time.Millisecond)
	close(release)

	select {
	case err := <-done:
		if !errors.Is(err, voice.ErrInterrupted) {
			t.Fatalf("Speak err = %v, want ErrInterrupted", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("synthesis was not interrupted by barge-in")
	}
	if p.IsSpeaking() {
		t.Error("IsSpeaking still true after interrupt")
	}
}

func TestPipelineOutOfOrderCompletion(t *testing.T) {
	firstDone := make(chan struct{})
	var calls int
	var mu sync.Mutex

	transcriber := sttmock.New("first utterance", "second utterance")
	transcriber.WithDelay(func() {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			<-firstDone // stall the first recognition until the second lands
		}
	})

	rig := newRig(t, transcriber, nil)

	var delivered []string
	deliveredCh := make(chan struct{}, 4)
	if err := rig.pipeline.Start(context.Background(), func(text string) {
		mu.Lock()
		delivered = append(delivered, text)
		mu.Unlock()
		deliveredCh <- struct{}{}
		if text == "second utterance" {
			close(firstDone)
		}
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.pipeline.Stop()

	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))
	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))

	for i := 0; i < 2; i++ {
		select {
		case <-deliveredCh:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d transcripts delivered", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"second utterance", "first utterance"}
	for i := range want {
		if delivered[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", delivered, want)
		}
	}
}

func TestPipelineStopJoinsWorkersAndIsIdempotent(t *testing.T) {
	release := make(chan struct{})
	transcriber := sttmock.New("slow result")
	transcriber.WithDelay(func() { <-release })

	rig := newRig(t, transcriber, nil)

	var deliveries int
	var mu sync.Mutex
	if err := rig.pipeline.Start(context.Background(), func(string) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))

	// Give the worker time to enter Transcribe, then release it while Stop
	// is joining.
	time.Sleep(300 * time.Millisecond)
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	if err := rig.pipeline.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := rig.pipeline.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if rig.pipeline.IsListening() {
		t.Error("IsListening after Stop")
	}

	// The worker that was in flight during Stop must have finished by now.
	mu.Lock()
	defer mu.Unlock()
	if deliveries > 1 {
		t.Errorf("deliveries = %d, want at most 1", deliveries)
	}
}

func TestPipelineRedundantStopStaysPrompt(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	transcriber := sttmock.New("slow result")
	transcriber.WithDelay(func() { close(entered); <-release })

	rig := newRig(t, transcriber, nil)
	if err := rig.pipeline.Start(context.Background(), func(string) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rig.pipeline.PushExternal(pattern(rig.det, "ssss..."))
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("recognition never started")
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- rig.pipeline.Stop() }()
	// Let the first Stop begin joining the stalled worker.
	time.Sleep(100 * time.Millisecond)

	secondDone := make(chan error, 1)
	go func() { secondDone <- rig.pipeline.Stop() }()
	select {
	case err := <-secondDone:
		if err != nil {
			t.Fatalf("redundant Stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("redundant Stop blocked behind the joining Stop")
	}

	close(release)
	select {
	case err := <-firstDone:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop never finished joining workers")
	}
}

func TestPipelineStartTwiceFails(t *testing.T) {
	rig := newRig(t, sttmock.New("x"), nil)
	if err := rig.pipeline.Start(context.Background(), func(string) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.pipeline.Stop()

	if err := rig.pipeline.Start(context.Background(), func(string) {}); !errors.Is(err, voice.ErrAlreadyStarted) {
		t.Fatalf("second Start err = %v, want ErrAlreadyStarted", err)
	}
}

func TestPipelineReady(t *testing.T) {
	rig := newRig(t, sttmock.New("x"), nil)
	if err := rig.pipeline.Ready(context.Background()); !errors.Is(err, voice.ErrNotStarted) {
		t.Fatalf("Ready before Start = %v, want ErrNotStarted", err)
	}
	if err := rig.pipeline.Start(context.Background(), func(string) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.pipeline.Stop()
	if err := rig.pipeline.Ready(context.Background()); err != nil {
		t.Fatalf("Ready while running = %v, want nil", err)
	}
}
