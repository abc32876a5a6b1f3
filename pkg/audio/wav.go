package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	wav "github.com/youpy/go-wav"
)

// EncodeWAV wraps raw 16-bit mono PCM in a RIFF/WAVE container. Remote STT
// endpoints and the synthesizer's temp-file playback path both consume WAV
// rather than headerless PCM.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	n := len(pcm) / BytesPerSample
	samples := make([]wav.Sample, n)
	for i := range n {
		v := int(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		samples[i] = wav.Sample{Values: [2]int{v, 0}}
	}

	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(n), 1, uint32(sampleRate), 16)
	if err := w.WriteSamples(samples); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteWAV writes raw 16-bit mono PCM as a WAV stream to w.
func WriteWAV(w io.Writer, pcm []byte, sampleRate int) error {
	data, err := EncodeWAV(pcm, sampleRate)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("audio: write wav: %w", err)
	}
	return nil
}

// DecodeWAV extracts 16-bit mono PCM and the sample rate from a WAV stream.
// Stereo input is down-mixed by taking the left channel.
func DecodeWAV(r io.Reader) (pcm []byte, sampleRate int, err error) {
	// wav.NewReader requires io.ReaderAt, which io.Reader does not provide.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: read wav: %w", err)
	}
	reader := wav.NewReader(bytes.NewReader(data))
	format, err := reader.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("audio: read wav format: %w", err)
	}

	var out bytes.Buffer
	for {
		samples, err := reader.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("audio: read wav samples: %w", err)
		}
		for _, s := range samples {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(int16(reader.IntValue(s, 0))))
			out.Write(b[:])
		}
	}
	return out.Bytes(), int(format.SampleRate), nil
}
