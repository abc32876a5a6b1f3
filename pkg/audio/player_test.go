package audio_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/voxkit-dev/voxkit/pkg/audio"
)

// fakeOutput records everything written to it. Its Write hook lets tests
// trigger cancellation mid-playback.
type fakeOutput struct {
	mu         sync.Mutex
	written    []byte
	writes     int
	resets     int
	drains     int
	sampleRate int
	onWrite    func(writes int)
	writeErr   error
}

func (o *fakeOutput) Start(sampleRate int) error {
	o.sampleRate = sampleRate
	return nil
}

func (o *fakeOutput) Write(pcm []byte) error {
	o.mu.Lock()
	o.writes++
	writes := o.writes
	o.written = append(o.written, pcm...)
	hook := o.onWrite
	err := o.writeErr
	o.mu.Unlock()
	if hook != nil {
		hook(writes)
	}
	return err
}

func (o *fakeOutput) Drain() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drains++
	return nil
}

func (o *fakeOutput) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets++
	return nil
}

func (o *fakeOutput) Stop() error { return nil }

func TestPlayerPlaysAllAudioInChunks(t *testing.T) {
	out := &fakeOutput{}
	p := audio.NewPlayer(out)

	pcm := make([]byte, 10000)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	if err := p.Play(context.Background(), pcm, 24000); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if out.sampleRate != 24000 {
		t.Errorf("sample rate = %d, want 24000", out.sampleRate)
	}
	if out.writes < 3 {
		t.Errorf("writes = %d, want chunked writes (>= 3)", out.writes)
	}
	if len(out.written) != len(pcm) {
		t.Fatalf("wrote %d bytes, want %d", len(out.written), len(pcm))
	}
	for i := range pcm {
		if out.written[i] != pcm[i] {
			t.Fatalf("byte %d corrupted", i)
		}
	}
	if out.drains != 1 {
		t.Errorf("drains = %d, want 1", out.drains)
	}
}

func TestPlayerStopHaltsBetweenChunks(t *testing.T) {
	out := &fakeOutput{}
	p := audio.NewPlayer(out)
	out.onWrite = func(writes int) {
		if writes == 2 {
			p.Stop()
		}
	}

	pcm := make([]byte, 50000)
	err := p.Play(context.Background(), pcm, 24000)
	if !errors.Is(err, audio.ErrPlaybackStopped) {
		t.Fatalf("Play err = %v, want ErrPlaybackStopped", err)
	}
	if out.writes > 3 {
		t.Errorf("writes = %d; playback kept going after Stop", out.writes)
	}
	if out.resets == 0 {
		t.Error("queued audio was not discarded on Stop")
	}
	if out.drains != 0 {
		t.Error("Drain must not run after cancellation")
	}
}

func TestPlayerContextCancellation(t *testing.T) {
	out := &fakeOutput{}
	p := audio.NewPlayer(out)
	ctx, cancel := context.WithCancel(context.Background())
	out.onWrite = func(writes int) {
		if writes == 1 {
			cancel()
		}
	}

	err := p.Play(ctx, make([]byte, 50000), 24000)
	if !errors.Is(err, audio.ErrPlaybackStopped) {
		t.Fatalf("Play err = %v, want ErrPlaybackStopped", err)
	}
}

func TestPlayerWriteErrorPropagates(t *testing.T) {
	devErr := errors.New("device gone")
	out := &fakeOutput{writeErr: devErr}
	p := audio.NewPlayer(out)

	if err := p.Play(context.Background(), make([]byte, 100), 24000); !errors.Is(err, devErr) {
		t.Fatalf("Play err = %v, want %v", err, devErr)
	}
}
