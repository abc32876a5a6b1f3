// Package vad defines the Detector interface for voice activity detection
// backends and the threshold Classifier the pipeline consumes.
//
// A Detector wraps a frame-level speech model (Silero via ONNX Runtime, or
// the energy baseline) and reports a speech probability for one fixed-size
// PCM frame at a time. Detectors may keep internal smoothing state across
// calls, but from the caller's point of view classification is per-frame:
// there is no session to open or reset between utterances.
//
// Detectors are not required to be safe for concurrent use — the pipeline
// calls them from its single consumer loop only.
package vad

import (
	"log/slog"
	"sync"

	"github.com/voxkit-dev/voxkit/pkg/audio"
)

// DefaultThreshold is the speech probability above which a frame is
// classified as speech.
const DefaultThreshold = 0.5

// Detector reports the speech probability of a single PCM frame.
type Detector interface {
	// SpeechProb returns the probability (0.0–1.0) that the frame contains
	// speech. The frame is raw little-endian 16-bit mono PCM and must hold
	// exactly the detector's required sample count.
	SpeechProb(pcm []byte) (float64, error)

	// Close releases model resources. Safe to call more than once.
	Close() error
}

// Classifier turns a Detector's probability into the per-frame speech /
// non-speech verdict the segmenter consumes. Frames shorter than blockSize
// are zero-padded before inference. Inference failures are fail-safe: the
// frame is classified as non-speech and the error is logged, never
// propagated — a broken VAD must not stall the capture loop.
type Classifier struct {
	det       Detector
	threshold float64
	blockSize int

	warnOnce sync.Once
	failures int64
}

// NewClassifier wraps det with the given confidence threshold and frame
// size. A non-positive threshold falls back to DefaultThreshold.
func NewClassifier(det Detector, threshold float64, blockSize int) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if blockSize <= 0 {
		blockSize = audio.DefaultBlockSize
	}
	return &Classifier{det: det, threshold: threshold, blockSize: blockSize}
}

// IsSpeech classifies one frame. See Classifier for the fail-safe contract.
func (c *Classifier) IsSpeech(pcm []byte) bool {
	prob, err := c.det.SpeechProb(audio.ZeroPad(pcm, c.blockSize))
	if err != nil {
		c.failures++
		c.warnOnce.Do(func() {
			slog.Warn("vad inference failed, classifying as non-speech", "error", err)
		})
		return false
	}
	return prob > c.threshold
}

// Failures reports how many frames were classified as non-speech because
// inference failed.
func (c *Classifier) Failures() int64 {
	return c.failures
}

// Close releases the underlying detector.
func (c *Classifier) Close() error {
	return c.det.Close()
}
