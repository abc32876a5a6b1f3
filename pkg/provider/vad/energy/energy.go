// Package energy implements a model-free vad.Detector based on frame RMS
// energy. It exists as a zero-dependency fallback for environments where the
// ONNX runtime is unavailable; it is noticeably less accurate than Silero
// and should only be used for development and tests.
package energy

import (
	"github.com/voxkit-dev/voxkit/pkg/audio"
	"github.com/voxkit-dev/voxkit/pkg/provider/vad"
)

// DefaultRMSThreshold is the RMS amplitude that maps to a 0.5 speech
// probability. Tuned for 16-bit microphone input at conversational volume.
const DefaultRMSThreshold = 500.0

var _ vad.Detector = (*Detector)(nil)

// Detector scores frames by RMS energy. A frame at exactly the threshold
// scores 0.5; louder frames scale linearly up to 1.0.
type Detector struct {
	threshold float64
}

// New returns an energy detector. A non-positive threshold falls back to
// DefaultRMSThreshold.
func New(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultRMSThreshold
	}
	return &Detector{threshold: threshold}
}

// SpeechProb implements vad.Detector.
func (d *Detector) SpeechProb(pcm []byte) (float64, error) {
	prob := audio.RMS(pcm) / (2 * d.threshold)
	if prob > 1 {
		prob = 1
	}
	return prob, nil
}

// Close implements vad.Detector. It is a no-op.
func (d *Detector) Close() error { return nil }
