// Package voice wires capture, voice activity detection, segmentation,
// transcription, and synthesis into one full-duplex pipeline.
//
// The pipeline runs a single frame-consumer goroutine that classifies each
// captured frame and drives the segmenter. Completed utterances are handed
// to a bounded pool of recognition workers, so a slow STT call never stalls
// frame consumption; capture, classification, and barge-in detection keep
// running while transcription is in flight.
//
// Because recognitions run concurrently, transcripts may be delivered out
// of utterance order when a later, shorter utterance finishes first.
// Callers that need strict ordering must sequence on their side.
//
// Speaking and listening are full-duplex: frames keep flowing during
// playback, and the first speech frame detected while the synthesizer is
// active cuts playback off (barge-in) before the frame is buffered.
package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/voxkit-dev/voxkit/internal/observe"
	"github.com/voxkit-dev/voxkit/internal/segment"
	"github.com/voxkit-dev/voxkit/internal/transcript"
	"github.com/voxkit-dev/voxkit/internal/wakeword"
	"github.com/voxkit-dev/voxkit/pkg/audio"
	"github.com/voxkit-dev/voxkit/pkg/provider/stt"
	"github.com/voxkit-dev/voxkit/pkg/provider/vad"
)

// ErrNotStarted is returned by operations that need a running pipeline.
var ErrNotStarted = errors.New("voice: pipeline not started")

// ErrAlreadyStarted is returned by Start when the pipeline is running.
var ErrAlreadyStarted = errors.New("voice: pipeline already started")

// DefaultMaxInFlight bounds concurrent STT recognitions. Two lets a short
// follow-up utterance start transcribing while a long one is still in
// flight, without letting a backlog of provider calls pile up.
const DefaultMaxInFlight = 2

// defaultReadTimeout is how long the consumer loop waits for a frame
// before re-checking for shutdown.
const defaultReadTimeout = 100 * time.Millisecond

// Config assembles a Pipeline from its injected stages.
type Config struct {
	// Source supplies capture frames. Required.
	Source *audio.Source

	// Classifier produces the per-frame speech verdict. Required.
	Classifier *vad.Classifier

	// Transcriber converts utterances to text, usually a fallback chain.
	// Required.
	Transcriber stt.Provider

	// Synthesizer plays replies and is the barge-in target. Optional; a
	// transcription-only pipeline may omit it.
	Synthesizer *Synthesizer

	// Gate filters utterances by wake word. Optional; nil processes every
	// utterance.
	Gate *wakeword.Gate

	// Filter drops hallucinated transcripts. Optional; nil uses the
	// built-in blocklist only.
	Filter *transcript.Filter

	// Metrics receives pipeline instrumentation. Nil uses the package
	// default.
	Metrics *observe.Metrics

	// EndpointFrames and MinSpeechFrames tune the segmenter; zero values
	// use the segment package defaults.
	EndpointFrames  int
	MinSpeechFrames int

	// MaxInFlight bounds concurrent recognitions. Default: 2.
	MaxInFlight int
}

// Pipeline is the full-duplex voice front end. Create with New, feed it a
// transcript callback via Start or consume the channel from StartAsync.
type Pipeline struct {
	cfg     Config
	metrics *observe.Metrics
	seg     *segment.Segmenter
	sem     *semaphore.Weighted

	mu         sync.Mutex
	cancel     context.CancelFunc
	consumerWG sync.WaitGroup
	workerWG   sync.WaitGroup
	started    atomic.Bool
	listening  atomic.Bool

	onTranscript func(text string)
	out          chan string
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, errors.New("voice: Config.Source is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("voice: Config.Classifier is required")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("voice: Config.Transcriber is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}

	p := &Pipeline{
		cfg:     cfg,
		metrics: cfg.Metrics,
		sem:     semaphore.NewWeighted(int64(cfg.MaxInFlight)),
	}
	p.seg = segment.New(segment.Config{
		EndpointFrames:  cfg.EndpointFrames,
		MinSpeechFrames: cfg.MinSpeechFrames,
		OnSpeechStart:   p.onSpeechOnset,
		OnUtterance:     p.onUtterance,
		OnDiscard:       p.onDiscard,
	})
	return p, nil
}

// Start begins capture and frame consumption. onTranscript is invoked from
// recognition worker goroutines with each final, filtered transcript; it
// must be safe for concurrent calls and must not call back into Start,
// StartAsync, or Stop — Stop joins in-flight deliveries, so re-entering
// lifecycle methods from the callback deadlocks. Start returns once the
// pipeline is running; it does not block for its lifetime.
func (p *Pipeline) Start(ctx context.Context, onTranscript func(text string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started.Load() {
		return ErrAlreadyStarted
	}
	if err := p.cfg.Source.Start(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.onTranscript = onTranscript
	p.started.Store(true)
	p.listening.Store(true)

	p.consumerWG.Add(1)
	go p.consume(runCtx)
	return nil
}

// StartAsync is Start in channel form: transcripts are delivered on the
// returned channel, which is closed by Stop. The channel is buffered; when
// a consumer stops reading, further transcripts are dropped with a warning
// rather than blocking shutdown.
func (p *Pipeline) StartAsync(ctx context.Context) (<-chan string, error) {
	out := make(chan string, 16)
	err := p.Start(ctx, func(text string) {
		select {
		case out <- text:
		default:
			observe.Logger(context.Background()).Warn("transcript dropped, consumer not reading")
		}
	})
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.out = out
	p.mu.Unlock()
	return out, nil
}

// Stop shuts the pipeline down: capture stops, the consumer loop exits,
// in-flight recognitions are joined, and any partially accumulated
// utterance is dropped. Idempotent; a redundant Stop returns without
// touching the lifecycle lock, so it stays prompt even while another Stop
// is joining workers.
func (p *Pipeline) Stop() error {
	if !p.started.Load() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started.Load() {
		return nil
	}
	p.started.Store(false)
	p.listening.Store(false)

	err := p.cfg.Source.Stop()
	p.cancel()
	p.consumerWG.Wait()
	p.workerWG.Wait()

	if p.cfg.Synthesizer != nil {
		p.cfg.Synthesizer.Stop()
	}
	p.seg.Reset()

	if dropped := p.cfg.Source.Dropped(); dropped > 0 {
		p.metrics.DroppedFrames.Add(context.Background(), dropped)
	}
	if p.out != nil {
		close(p.out)
		p.out = nil
	}
	return err
}

// PushExternal feeds PCM from a non-device source (file replay, network
// stream) into the pipeline as if it had been captured.
func (p *Pipeline) PushExternal(pcm []byte) {
	p.cfg.Source.PushExternal(pcm)
}

// Speak synthesizes and plays text, blocking until playback finishes or is
// interrupted. Listening continues throughout; a speech onset during
// playback cuts it off and Speak returns [ErrInterrupted].
func (p *Pipeline) Speak(ctx context.Context, text string) error {
	if p.cfg.Synthesizer == nil {
		return errors.New("voice: no synthesizer configured")
	}
	return p.cfg.Synthesizer.Speak(ctx, text)
}

// SpeakAsync starts playback and returns immediately. The returned channel
// receives the playback result (nil, [ErrInterrupted], or a synthesis
// error) exactly once.
func (p *Pipeline) SpeakAsync(ctx context.Context, text string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- p.Speak(ctx, text)
	}()
	return done
}

// IsListening reports whether the capture loop is running.
func (p *Pipeline) IsListening() bool {
	return p.listening.Load()
}

// IsSpeaking reports whether reply playback is in progress.
func (p *Pipeline) IsSpeaking() bool {
	return p.cfg.Synthesizer != nil && p.cfg.Synthesizer.Speaking()
}

// Ready is a health check: nil while the pipeline is running.
func (p *Pipeline) Ready(context.Context) error {
	if !p.started.Load() {
		return ErrNotStarted
	}
	return nil
}

// consume is the single frame-consumer loop. It owns the classifier and
// the segmenter; neither is safe for concurrent use.
func (p *Pipeline) consume(ctx context.Context) {
	defer p.consumerWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok := p.cfg.Source.ReadFrame(defaultReadTimeout)
		if !ok {
			continue
		}
		p.seg.Feed(frame, p.cfg.Classifier.IsSpeech(frame.Data))
	}
}

// onSpeechOnset fires on the idle → speech transition. Barge-in: if a
// reply is playing, kill it before buffering the user's speech.
func (p *Pipeline) onSpeechOnset() {
	if p.cfg.Synthesizer != nil && p.cfg.Synthesizer.Speaking() {
		p.cfg.Synthesizer.Stop()
		p.metrics.Interruptions.Add(context.Background(), 1)
		observe.Logger(context.Background()).Info("playback interrupted by speech onset")
	}
}

// onUtterance hands a completed utterance to a recognition worker. Runs on
// the consumer goroutine; must not block on the STT call itself.
func (p *Pipeline) onUtterance(frames []audio.Frame) {
	p.metrics.RecordUtterance(context.Background(), "emitted")
	pcm := audio.ConcatFrames(frames)

	p.workerWG.Add(1)
	go p.recognize(pcm)
}

func (p *Pipeline) onDiscard(speechFrames int) {
	p.metrics.RecordUtterance(context.Background(), "discarded")
	observe.Logger(context.Background()).Debug("utterance discarded as too short",
		"speech_frames", speechFrames)
}

// recognize transcribes one utterance under the in-flight semaphore and
// delivers the cleaned transcript.
func (p *Pipeline) recognize(pcm []byte) {
	defer p.workerWG.Done()

	ctx, span := observe.StartSpan(context.Background(), "voice.recognize")
	defer span.End()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)

	p.metrics.InFlightRecognitions.Add(ctx, 1)
	defer p.metrics.InFlightRecognitions.Add(ctx, -1)

	start := time.Now()
	raw, err := p.cfg.Transcriber.Transcribe(ctx, pcm)
	p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.cfg.Transcriber.Name(), "stt")
		observe.Logger(ctx).Error("transcription failed", "error", err)
		return
	}

	text, ok := p.clean(raw)
	if !ok {
		observe.Logger(ctx).Debug("transcript filtered", "raw", raw)
		return
	}

	if p.cfg.Gate != nil && p.cfg.Gate.Enabled() {
		rest, matched := p.cfg.Gate.Match(text)
		if !matched {
			observe.Logger(ctx).Debug("utterance without wake word ignored", "text", text)
			return
		}
		if rest == "" {
			// Wake word alone carries no command.
			return
		}
		text = rest
	}

	if p.onTranscript != nil && p.started.Load() {
		p.onTranscript(text)
	}
}

func (p *Pipeline) clean(raw string) (string, bool) {
	if p.cfg.Filter != nil {
		return p.cfg.Filter.Clean(raw)
	}
	return transcript.Clean(raw)
}
