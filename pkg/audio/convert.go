package audio

import (
	"encoding/binary"
	"math"
)

// PCMToFloat32 converts 16-bit signed little-endian PCM bytes to float32
// samples normalised to [-1.0, 1.0]. Any trailing odd byte is ignored.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// Float32ToPCM converts normalised float32 samples back to 16-bit signed
// little-endian PCM bytes. Samples outside [-1.0, 1.0] are clipped.
func Float32ToPCM(samples []float32) []byte {
	pcm := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s*32767)))
	}
	return pcm
}

// ZeroPad returns pcm extended with zero samples to exactly blockSize samples.
// If pcm already holds blockSize or more samples it is returned unchanged.
func ZeroPad(pcm []byte, blockSize int) []byte {
	want := blockSize * BytesPerSample
	if len(pcm) >= want {
		return pcm
	}
	padded := make([]byte, want)
	copy(padded, pcm)
	return padded
}

// ConcatFrames joins the Data of the given frames into one contiguous PCM
// buffer, preserving frame order.
func ConcatFrames(frames []Frame) []byte {
	var total int
	for _, f := range frames {
		total += len(f.Data)
	}
	out := make([]byte, 0, total)
	for _, f := range frames {
		out = append(out, f.Data...)
	}
	return out
}

// RMS computes the root-mean-square energy of 16-bit PCM audio, in raw
// sample units (0–32767). Used by the energy VAD baseline and silence gates.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
