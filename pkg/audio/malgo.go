package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoCapture is a CaptureDevice backed by miniaudio (malgo). It opens the
// default capture device in 16-bit mono at the configured sample rate.
type MalgoCapture struct {
	sampleRate int

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// Compile-time interface assertion.
var _ CaptureDevice = (*MalgoCapture)(nil)

// NewMalgoCapture creates a capture device for the given sample rate.
func NewMalgoCapture(sampleRate int) *MalgoCapture {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &MalgoCapture{sampleRate: sampleRate}
}

// Start opens the default capture device and begins delivering PCM blocks.
// Device acquisition failures are returned to the caller; they are the one
// fatal error in the capture path and are never retried here.
func (c *MalgoCapture) Start(onBlock func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return ErrAlreadyStarted
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio: init capture context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(c.sampleRate)
	cfg.Alsa.NoMMap = 1

	onRecv := func(_, pSample []byte, framecount uint32) {
		if framecount == 0 {
			return
		}
		onBlock(pSample)
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("audio: open capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("audio: start capture device: %w", err)
	}

	c.ctx = ctx
	c.device = device
	return nil
}

// Stop halts capture and releases the device. Idempotent.
func (c *MalgoCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}
	c.device.Uninit()
	c.device = nil
	err := c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
	return err
}

// malgoHighWater bounds the software playback buffer to roughly one second
// of 16-bit mono audio at 24 kHz; Write blocks beyond this for pacing.
const malgoHighWater = 48000

// errRingClosed is returned by pcmRing.write after close.
var errRingClosed = errors.New("audio: playback device not started")

// pcmRing is the software buffer between Write callers and the device data
// callback. The callback side (pull) only ever takes the ring's own mutex,
// so closing a device never contends with it: close marks the ring dead and
// wakes every blocked writer and drainer, and device teardown happens with
// no lock the callback could be waiting on.
type pcmRing struct {
	highWater int

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newPCMRing(highWater int) *pcmRing {
	r := &pcmRing{highWater: highWater}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// write queues pcm, blocking while the buffer is above the high-water mark
// so that callers feed audio at roughly playback speed.
func (r *pcmRing) write(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.buf) > r.highWater && !r.closed {
		r.cond.Wait()
	}
	if r.closed {
		return errRingClosed
	}
	r.buf = append(r.buf, pcm...)
	return nil
}

// pull copies buffered PCM into dst and returns the byte count. Called from
// the device data callback.
func (r *pcmRing) pull(dst []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := copy(dst, r.buf)
	r.buf = r.buf[n:]
	r.cond.Broadcast()
	return n
}

// drain blocks until the buffer is empty or the ring is closed.
func (r *pcmRing) drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.buf) > 0 && !r.closed {
		r.cond.Wait()
	}
}

// reset discards all queued-but-unplayed audio immediately.
func (r *pcmRing) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = nil
	r.cond.Broadcast()
}

// close marks the ring dead and wakes every blocked writer and drainer.
func (r *pcmRing) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.buf = nil
	r.cond.Broadcast()
}

// MalgoPlayback is an OutputDevice backed by miniaudio. Written PCM is
// buffered in a pcmRing and fed to the hardware from the device's data
// callback.
type MalgoPlayback struct {
	// lifeMu serializes Start and Stop. The data callback never takes it,
	// so device teardown cannot deadlock against an in-flight callback.
	lifeMu sync.Mutex

	mu         sync.Mutex
	ring       *pcmRing
	sampleRate int
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
}

// Compile-time interface assertion.
var _ OutputDevice = (*MalgoPlayback)(nil)

// NewMalgoPlayback creates an unopened playback device. The device is opened
// lazily by Start with the sample rate of the audio about to be played.
func NewMalgoPlayback() *MalgoPlayback {
	return &MalgoPlayback{}
}

// Start opens the default playback device at the given sample rate. When the
// device is already open at the same rate this is a no-op; a rate change
// closes and reopens it.
func (p *MalgoPlayback) Start(sampleRate int) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.Lock()
	open := p.device != nil
	sameRate := p.sampleRate == sampleRate
	p.mu.Unlock()
	if open {
		if sameRate {
			return nil
		}
		p.closeDevice()
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio: init playback context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	// The callback captures the per-device ring directly and never touches
	// p.mu; see pcmRing.
	ring := newPCMRing(malgoHighWater)
	onSend := func(pOutput, _ []byte, framecount uint32) {
		n := ring.pull(pOutput)
		for i := n; i < len(pOutput); i++ {
			pOutput[i] = 0
		}
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onSend})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("audio: open playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("audio: start playback device: %w", err)
	}

	p.mu.Lock()
	p.ctx = ctx
	p.device = device
	p.ring = ring
	p.sampleRate = sampleRate
	p.mu.Unlock()
	return nil
}

// Write queues pcm for playback, blocking while the buffer is above the
// high-water mark. Returns an error when the device is not started or is
// stopped while the write is blocked.
func (p *MalgoPlayback) Write(pcm []byte) error {
	p.mu.Lock()
	ring := p.ring
	p.mu.Unlock()
	if ring == nil {
		return errRingClosed
	}
	return ring.write(pcm)
}

// Drain blocks until the software buffer is empty. Audio already inside the
// hardware buffer may still be playing when Drain returns.
func (p *MalgoPlayback) Drain() error {
	p.mu.Lock()
	ring := p.ring
	p.mu.Unlock()
	if ring != nil {
		ring.drain()
	}
	return nil
}

// Reset discards all queued-but-unplayed audio immediately.
func (p *MalgoPlayback) Reset() error {
	p.mu.Lock()
	ring := p.ring
	p.mu.Unlock()
	if ring != nil {
		ring.reset()
	}
	return nil
}

// Stop closes the device, discarding queued audio. Idempotent.
func (p *MalgoPlayback) Stop() error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	p.closeDevice()
	return nil
}

// closeDevice releases the device and context. Caller holds p.lifeMu. The
// fields are snapshotted and cleared under p.mu, then the ring is closed to
// wake blocked writers, and only then is the device joined; Uninit blocks
// until the audio thread finishes its current callback, so no lock the
// callback or a waiter could hold may be held here.
func (p *MalgoPlayback) closeDevice() {
	p.mu.Lock()
	ring, device, ctx := p.ring, p.device, p.ctx
	p.ring, p.device, p.ctx = nil, nil, nil
	p.mu.Unlock()

	if ring != nil {
		ring.close()
	}
	if device != nil {
		device.Uninit()
	}
	if ctx != nil {
		_ = ctx.Uninit()
		ctx.Free()
	}
}
