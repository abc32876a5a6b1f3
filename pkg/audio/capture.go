package audio

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyStarted is returned by Source.Start when the source is running.
var ErrAlreadyStarted = errors.New("audio: source already started")

// CaptureDevice abstracts the physical input device so that tests can supply
// a fake. The device delivers raw little-endian 16-bit mono PCM blocks of
// arbitrary length; the Source re-chunks them into fixed-size frames.
//
// Implementations own the only handle to the underlying hardware. A failure
// to open the device must be reported from Start — it is the single fatal
// error in the capture path.
type CaptureDevice interface {
	// Start opens the device and begins invoking onBlock for every captured
	// PCM block. onBlock must not retain the slice it is given.
	Start(onBlock func(pcm []byte)) error

	// Stop halts capture and releases the device. Calling Stop more than
	// once is safe and returns nil.
	Stop() error
}

// SourceConfig holds the frame geometry and queue depth for a Source.
type SourceConfig struct {
	// SampleRate in Hz. Default: DefaultSampleRate.
	SampleRate int

	// BlockSize is the number of samples per emitted frame. Must match the
	// VAD model's required input length. Default: DefaultBlockSize.
	BlockSize int

	// QueueDepth is the capacity of the internal frame queue. When the
	// consumer falls behind, the oldest unread capacity is preserved and new
	// frames are dropped (and counted). Default: 256.
	QueueDepth int
}

func (c *SourceConfig) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 256
	}
}

// Source produces fixed-size PCM frames from either a local capture device
// or externally pushed bytes, feeding both through one queue so that exactly
// one segmentation code path exists downstream regardless of audio origin.
//
// Frames are copied on enqueue: device buffers are reused by the hardware
// layer between callbacks and must never be shared with consumers.
//
// ReadFrame may be called from a single consumer goroutine; PushExternal may
// be called concurrently by transport code.
type Source struct {
	cfg SourceConfig
	dev CaptureDevice

	frames  chan Frame
	started atomic.Bool
	startAt time.Time

	// pending accumulates partial device blocks between callbacks. It is
	// touched only by the device callback, which malgo serialises.
	pending []byte

	extMu sync.Mutex

	dropped  atomic.Int64
	warnDrop sync.Once
}

// NewSource creates a Source reading from dev. dev may be nil when the
// source is fed exclusively through PushExternal.
func NewSource(cfg SourceConfig, dev CaptureDevice) *Source {
	cfg.applyDefaults()
	return &Source{
		cfg:    cfg,
		dev:    dev,
		frames: make(chan Frame, cfg.QueueDepth),
	}
}

// Start opens the capture device and begins continuous background capture.
// A device-open failure is fatal and returned immediately; it is never
// retried. Start is a no-op returning ErrAlreadyStarted when already running.
func (s *Source) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.startAt = time.Now()
	s.pending = nil

	if s.dev == nil {
		slog.Info("audio source started (external frames only)",
			"sample_rate", s.cfg.SampleRate, "block_size", s.cfg.BlockSize)
		return nil
	}

	if err := s.dev.Start(s.onDeviceBlock); err != nil {
		s.started.Store(false)
		return err
	}
	slog.Info("audio source started",
		"sample_rate", s.cfg.SampleRate, "block_size", s.cfg.BlockSize)
	return nil
}

// Stop halts capture. Idempotent; subsequent ReadFrame calls time out.
func (s *Source) Stop() error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}
	var err error
	if s.dev != nil {
		err = s.dev.Stop()
	}
	slog.Info("audio source stopped", "frames_dropped", s.dropped.Load())
	return err
}

// ReadFrame pops the next frame, waiting up to timeout. The second return
// value is false when no frame arrived in time — this is expected during
// silence gaps and is not an error.
func (s *Source) ReadFrame(timeout time.Duration) (Frame, bool) {
	select {
	case f := <-s.frames:
		return f, true
	case <-time.After(timeout):
		return Frame{}, false
	}
}

// PushExternal feeds PCM bytes that arrived over an external transport into
// the same frame queue used by local capture. The bytes are re-chunked to
// the configured block size; a short trailing remainder is zero-padded so
// the VAD always sees full blocks. Ignored while the source is stopped.
func (s *Source) PushExternal(pcm []byte) {
	if !s.started.Load() {
		return
	}
	blockBytes := s.cfg.BlockSize * BytesPerSample

	s.extMu.Lock()
	defer s.extMu.Unlock()
	for off := 0; off < len(pcm); off += blockBytes {
		end := off + blockBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		s.enqueue(ZeroPad(pcm[off:end], s.cfg.BlockSize))
	}
}

// Drain discards all frames currently buffered in the queue.
func (s *Source) Drain() {
	for {
		select {
		case <-s.frames:
		default:
			return
		}
	}
}

// Dropped reports how many frames were discarded because the queue was full.
func (s *Source) Dropped() int64 {
	return s.dropped.Load()
}

// onDeviceBlock re-chunks device blocks of arbitrary length into fixed-size
// frames. Unlike PushExternal there is no padding: the device stream is
// continuous, so the remainder simply waits for the next callback.
func (s *Source) onDeviceBlock(pcm []byte) {
	if !s.started.Load() {
		return
	}
	blockBytes := s.cfg.BlockSize * BytesPerSample
	s.pending = append(s.pending, pcm...)
	for len(s.pending) >= blockBytes {
		s.enqueue(s.pending[:blockBytes])
		s.pending = s.pending[blockBytes:]
	}
}

// enqueue copies pcm into a fresh frame and appends it to the queue. When
// the queue is full the frame is dropped and counted rather than blocking
// the capture callback.
func (s *Source) enqueue(pcm []byte) {
	data := make([]byte, len(pcm))
	copy(data, pcm)
	f := Frame{Data: data, Timestamp: time.Since(s.startAt)}

	select {
	case s.frames <- f:
	default:
		s.dropped.Add(1)
		s.warnDrop.Do(func() {
			slog.Warn("audio frame queue full, dropping frames; is the consumer loop stalled?",
				"queue_depth", s.cfg.QueueDepth)
		})
	}
}
