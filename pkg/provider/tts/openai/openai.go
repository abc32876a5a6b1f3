// Package openai implements tts.Provider on top of the OpenAI speech API.
// Audio is requested in raw PCM format, which the API delivers as 24 kHz
// 16-bit mono, so no container parsing is needed.
package openai

import (
	"context"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxkit-dev/voxkit/pkg/provider/tts"
)

// pcmSampleRate is the fixed output rate of the speech API's PCM format.
const pcmSampleRate = 24000

var _ tts.Provider = (*Provider)(nil)

// Config holds the connection and voice settings for the speech API.
type Config struct {
	// APIKey authenticates against the service. Required.
	APIKey string

	// BaseURL overrides the API endpoint for OpenAI-compatible gateways.
	// Empty means api.openai.com.
	BaseURL string

	// Model is the speech model ID. Empty means tts-1.
	Model string

	// Voice selects the voice preset. Empty means alloy.
	Voice string

	// Speed adjusts speaking rate (0.25–4.0). Zero means the API default.
	Speed float64
}

// Provider calls the hosted speech endpoint. Safe for concurrent use.
type Provider struct {
	client oai.Client
	model  string
	voice  string
	speed  float64
}

// New builds a Provider from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai tts: APIKey is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(oai.SpeechModelTTS1)
	}
	voice := cfg.Voice
	if voice == "" {
		voice = string(oai.AudioSpeechNewParamsVoiceAlloy)
	}
	return &Provider{
		client: oai.NewClient(opts...),
		model:  model,
		voice:  voice,
		speed:  cfg.Speed,
	}, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "openai" }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if p.speed > 0 {
		params.Speed = oai.Float(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("openai tts: empty audio response")
	}
	return &tts.Result{PCM: pcm, SampleRate: pcmSampleRate}, nil
}

// Close implements tts.Provider. The HTTP client holds no resources that
// need explicit release.
func (p *Provider) Close() error { return nil }
