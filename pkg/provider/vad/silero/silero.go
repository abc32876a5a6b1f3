// Package silero provides a vad.Detector backed by the Silero VAD ONNX model
// running under ONNX Runtime.
//
// The model consumes exactly 512 samples of 16 kHz mono audio per inference,
// prefixed with 64 samples of rolling context, and carries a recurrent state
// tensor between calls. That state lives inside the Detector; callers still
// treat classification as per-frame. The state is zeroed every few seconds
// so that a long stream cannot drift the recurrence.
//
// The ONNX Runtime shared library must be initialised once per process via
// onnxruntime_go before the first call to New.
package silero

import (
	"errors"
	"fmt"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/voxkit-dev/voxkit/pkg/audio"
	"github.com/voxkit-dev/voxkit/pkg/provider/vad"
)

// RequiredSamples is the exact number of PCM samples per inference frame.
const RequiredSamples = 512

const (
	contextSamples = 64
	inputSamples   = contextSamples + RequiredSamples // 576
	stateSize      = 2 * 1 * 128
	resetInterval  = 5 * time.Second
)

// ErrFrameSize is returned when a frame does not hold RequiredSamples samples.
var ErrFrameSize = errors.New("silero: frame must be exactly 512 samples")

// Compile-time interface assertion.
var _ vad.Detector = (*Detector)(nil)

// Detector runs Silero VAD inference. Not safe for concurrent use; the
// pipeline drives it from a single goroutine.
type Detector struct {
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32] // (1, 576)
	state    *ort.Tensor[float32] // (2, 1, 128)
	sr       *ort.Tensor[int64]   // (1,)
	output   *ort.Tensor[float32] // (1, 1) speech probability
	stateOut *ort.Tensor[float32] // (2, 1, 128) next state

	context   [contextSamples]float32
	lastReset time.Time
	closed    bool
}

// New loads the Silero VAD model from modelPath and prepares reusable
// session tensors so the per-frame hot path allocates nothing.
func New(modelPath string, sampleRate int) (*Detector, error) {
	if modelPath == "" {
		return nil, errors.New("silero: modelPath must not be empty")
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	input, err := ort.NewTensor(ort.NewShape(1, inputSamples), make([]float32, inputSamples))
	if err != nil {
		return nil, fmt.Errorf("silero: input tensor: %w", err)
	}
	state, err := ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, stateSize))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("silero: state tensor: %w", err)
	}
	sr, err := ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)})
	if err != nil {
		_ = input.Destroy()
		_ = state.Destroy()
		return nil, fmt.Errorf("silero: sample-rate tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		_ = input.Destroy()
		_ = state.Destroy()
		_ = sr.Destroy()
		return nil, fmt.Errorf("silero: output tensor: %w", err)
	}
	stateOut, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		_ = input.Destroy()
		_ = state.Destroy()
		_ = sr.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("silero: state output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{input, state, sr},
		[]ort.Value{output, stateOut},
		nil)
	if err != nil {
		_ = input.Destroy()
		_ = state.Destroy()
		_ = sr.Destroy()
		_ = output.Destroy()
		_ = stateOut.Destroy()
		return nil, fmt.Errorf("silero: load model %q: %w", modelPath, err)
	}

	return &Detector{
		session:   session,
		input:     input,
		state:     state,
		sr:        sr,
		output:    output,
		stateOut:  stateOut,
		lastReset: time.Now(),
	}, nil
}

// SpeechProb implements vad.Detector. pcm must hold exactly RequiredSamples
// samples of little-endian 16-bit mono PCM.
func (d *Detector) SpeechProb(pcm []byte) (float64, error) {
	if d.closed {
		return 0, errors.New("silero: detector closed")
	}
	samples := audio.PCMToFloat32(pcm)
	if len(samples) != RequiredSamples {
		return 0, ErrFrameSize
	}

	if time.Since(d.lastReset) >= resetInterval {
		d.resetState()
	}

	in := d.input.GetData()
	copy(in[:contextSamples], d.context[:])
	copy(in[contextSamples:], samples)

	// Carry the last 64 samples forward as context for the next frame.
	copy(d.context[:], in[inputSamples-contextSamples:])

	if err := d.session.Run(); err != nil {
		return 0, fmt.Errorf("silero: inference: %w", err)
	}

	copy(d.state.GetData(), d.stateOut.GetData())
	return float64(d.output.GetData()[0]), nil
}

// Close destroys the ONNX session and tensors. Safe to call more than once.
func (d *Detector) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.session.Destroy()
	for _, t := range []ort.Value{d.input, d.state, d.sr, d.output, d.stateOut} {
		_ = t.Destroy()
	}
	return err
}

func (d *Detector) resetState() {
	for i := range d.context {
		d.context[i] = 0
	}
	d.state.ZeroContents()
	d.lastReset = time.Now()
}
