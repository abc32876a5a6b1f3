// Package audio provides the PCM frame type, the capture source, playback,
// and sample-format conversion helpers for the voxkit pipeline.
//
// All audio flowing through the pipeline is 16-bit signed little-endian
// mono PCM at a fixed sample rate (16 kHz by default). Frames are the atomic
// unit of transport: captured from the microphone (or pushed by an external
// transport), classified by VAD, buffered by the segmenter, and finally
// concatenated into utterances for speech recognition.
package audio

import "time"

// DefaultSampleRate is the pipeline-wide sample rate in Hz. It matches the
// input rate required by the Silero VAD model.
const DefaultSampleRate = 16000

// DefaultBlockSize is the number of samples per frame. 512 samples is the
// exact input length the Silero VAD model expects at 16 kHz (32 ms).
const DefaultBlockSize = 512

// BytesPerSample is fixed at 2 for 16-bit PCM.
const BytesPerSample = 2

// Frame is a fixed-length block of 16-bit mono PCM samples.
//
// The Data slice is owned by whichever queue currently holds the frame;
// producers must enqueue a copy so that reuse of device buffers cannot
// corrupt frames already in flight.
type Frame struct {
	// Data is raw little-endian int16 PCM. Its length is BlockSize*2 bytes.
	Data []byte

	// Timestamp marks when the frame was captured, relative to source start.
	Timestamp time.Duration
}

// Samples returns the number of PCM samples in the frame.
func (f Frame) Samples() int {
	return len(f.Data) / BytesPerSample
}
