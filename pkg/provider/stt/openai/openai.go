// Package openai implements stt.Provider on top of the OpenAI-compatible
// audio transcription API. Pointing BaseURL at a compatible gateway (Groq,
// a vLLM deployment) works unchanged.
package openai

import (
	"bytes"
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxkit-dev/voxkit/pkg/audio"
	"github.com/voxkit-dev/voxkit/pkg/provider/stt"
)

var _ stt.Provider = (*Provider)(nil)

// Config holds the connection and model settings for the transcription API.
type Config struct {
	// APIKey authenticates against the service. Required.
	APIKey string

	// BaseURL overrides the API endpoint for OpenAI-compatible gateways.
	// Empty means api.openai.com.
	BaseURL string

	// Model is the transcription model ID. Empty means whisper-1.
	Model string

	// Language is an ISO 639-1 hint (e.g. "en"). Empty lets the service
	// auto-detect.
	Language string

	// SampleRate of the PCM handed to Transcribe. Zero means 16000.
	SampleRate int
}

// Provider calls the hosted transcription endpoint. Safe for concurrent use.
type Provider struct {
	client     oai.Client
	model      string
	language   string
	sampleRate int
}

// New builds a Provider from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai stt: APIKey is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	return &Provider{
		client:     oai.NewClient(opts...),
		model:      model,
		language:   cfg.Language,
		sampleRate: rate,
	}, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "openai" }

// Transcribe implements stt.Provider. The PCM is wrapped in a WAV container
// because the API only accepts file uploads, not raw sample streams.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", stt.ErrEmptyAudio
	}
	wav, err := audio.EncodeWAV(pcm, p.sampleRate)
	if err != nil {
		return "", fmt.Errorf("openai stt: encode wav: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai stt: %w", err)
	}
	return resp.Text, nil
}

// Close implements stt.Provider. The HTTP client holds no resources that
// need explicit release.
func (p *Provider) Close() error { return nil }
