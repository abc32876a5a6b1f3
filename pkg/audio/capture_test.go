package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/voxkit-dev/voxkit/pkg/audio"
)

// fakeDevice is a CaptureDevice whose blocks are injected by the test.
type fakeDevice struct {
	onBlock  func([]byte)
	startErr error
	stops    int
}

func (d *fakeDevice) Start(onBlock func([]byte)) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.onBlock = onBlock
	return nil
}

func (d *fakeDevice) Stop() error {
	d.stops++
	return nil
}

func readAll(t *testing.T, s *audio.Source) []audio.Frame {
	t.Helper()
	var frames []audio.Frame
	for {
		f, ok := s.ReadFrame(10 * time.Millisecond)
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestSourceDeviceFramesPreserveOrder(t *testing.T) {
	dev := &fakeDevice{}
	src := audio.NewSource(audio.SourceConfig{BlockSize: 4, QueueDepth: 64}, dev)
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	// Feed 24 samples (6 frames of 4) in odd-sized device blocks so the
	// re-chunker has to split and join across callbacks.
	all := make([]int16, 24)
	for i := range all {
		all[i] = int16(i)
	}
	raw := samplesToBytes(all)
	dev.onBlock(raw[:6])
	dev.onBlock(raw[6:7])
	dev.onBlock(raw[7:30])
	dev.onBlock(raw[30:])

	frames := readAll(t, src)
	if len(frames) != 6 {
		t.Fatalf("got %d frames, want 6", len(frames))
	}
	next := int16(0)
	for fi, f := range frames {
		if f.Samples() != 4 {
			t.Fatalf("frame %d has %d samples, want 4", fi, f.Samples())
		}
		for i := 0; i < 4; i++ {
			got := int16(binary.LittleEndian.Uint16(f.Data[i*2:]))
			if got != next {
				t.Fatalf("frame %d sample %d = %d, want %d (reorder or drop)", fi, i, got, next)
			}
			next++
		}
	}
}

func TestSourceCopiesDeviceBuffer(t *testing.T) {
	dev := &fakeDevice{}
	src := audio.NewSource(audio.SourceConfig{BlockSize: 2, QueueDepth: 8}, dev)
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	buf := samplesToBytes([]int16{7, 8})
	dev.onBlock(buf)
	// Simulate the hardware layer reusing its buffer.
	for i := range buf {
		buf[i] = 0xFF
	}

	f, ok := src.ReadFrame(time.Second)
	if !ok {
		t.Fatal("no frame")
	}
	if got := int16(binary.LittleEndian.Uint16(f.Data)); got != 7 {
		t.Fatalf("frame sample = %d, want 7 (buffer was not copied)", got)
	}
}

func TestSourcePushExternalRechunksAndPads(t *testing.T) {
	src := audio.NewSource(audio.SourceConfig{BlockSize: 4, QueueDepth: 16}, nil)
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	// 10 samples → two full frames plus a padded remainder of 2.
	src.PushExternal(samplesToBytes([]int16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))

	frames := readAll(t, src)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	last := frames[2]
	if last.Samples() != 4 {
		t.Fatalf("padded frame has %d samples, want 4", last.Samples())
	}
	got := []int16{
		int16(binary.LittleEndian.Uint16(last.Data[0:])),
		int16(binary.LittleEndian.Uint16(last.Data[2:])),
		int16(binary.LittleEndian.Uint16(last.Data[4:])),
		int16(binary.LittleEndian.Uint16(last.Data[6:])),
	}
	want := []int16{9, 10, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("padded frame sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSourcePushExternalIgnoredWhenStopped(t *testing.T) {
	src := audio.NewSource(audio.SourceConfig{BlockSize: 2, QueueDepth: 8}, nil)
	src.PushExternal(samplesToBytes([]int16{1, 2}))
	if _, ok := src.ReadFrame(10 * time.Millisecond); ok {
		t.Fatal("frame enqueued while source stopped")
	}
}

func TestSourceStartFailsWhenDeviceFails(t *testing.T) {
	devErr := errors.New("no such device")
	src := audio.NewSource(audio.SourceConfig{}, &fakeDevice{startErr: devErr})
	if err := src.Start(); !errors.Is(err, devErr) {
		t.Fatalf("Start err = %v, want %v", err, devErr)
	}
	// A failed start must leave the source stopped so it can be retried.
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop after failed start: %v", err)
	}
}

func TestSourceStopIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	src := audio.NewSource(audio.SourceConfig{}, dev)
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if dev.stops != 1 {
		t.Fatalf("device stopped %d times, want 1", dev.stops)
	}
}

func TestSourceReadFrameTimeout(t *testing.T) {
	src := audio.NewSource(audio.SourceConfig{}, nil)
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	start := time.Now()
	_, ok := src.ReadFrame(20 * time.Millisecond)
	if ok {
		t.Fatal("unexpected frame")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("ReadFrame returned before the timeout elapsed")
	}
}

func TestSourceDrainEmptiesQueue(t *testing.T) {
	src := audio.NewSource(audio.SourceConfig{BlockSize: 2, QueueDepth: 16}, nil)
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	src.PushExternal(samplesToBytes([]int16{1, 2, 3, 4, 5, 6}))
	src.Drain()

	if _, ok := src.ReadFrame(10 * time.Millisecond); ok {
		t.Fatal("frame survived Drain")
	}

	// The source keeps accepting frames after a drain.
	src.PushExternal(samplesToBytes([]int16{7, 8}))
	if _, ok := src.ReadFrame(time.Second); !ok {
		t.Fatal("no frame after Drain")
	}
}

func TestSourceDropsWhenQueueFull(t *testing.T) {
	src := audio.NewSource(audio.SourceConfig{BlockSize: 1, QueueDepth: 2}, nil)
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	src.PushExternal(samplesToBytes([]int16{1, 2, 3, 4}))
	if got := src.Dropped(); got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}
	frames := readAll(t, src)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
}
