// Package config provides the configuration schema and loader for the
// voxkit voice pipeline.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	STT        STTConfig        `yaml:"stt"`
	TTS        TTSConfig        `yaml:"tts"`
	WakeWord   WakeWordConfig   `yaml:"wake_word"`
	LLM        LLMConfig        `yaml:"llm"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds the observability endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for the /metrics and health endpoints
	// (e.g., ":9090"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	// SampleRate of microphone capture in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// BlockSize is the number of samples per frame. Default: 512, the
	// frame size the Silero model expects.
	BlockSize int `yaml:"block_size"`

	// QueueDepth is the capture queue capacity in frames. When the
	// consumer falls behind, frames beyond this depth are dropped.
	// Default: 256.
	QueueDepth int `yaml:"queue_depth"`

	// CaptureDevice selects a capture backend. Currently only "malgo"
	// (the default) is supported; tests inject their own device.
	CaptureDevice string `yaml:"capture_device"`
}

// VADConfig selects and tunes the voice activity detector.
type VADConfig struct {
	// Backend is "silero" (default) or "energy".
	Backend string `yaml:"backend"`

	// ModelPath is the Silero ONNX model file. Required for the silero
	// backend.
	ModelPath string `yaml:"model_path"`

	// Threshold is the speech probability above which a frame counts as
	// speech. Default: 0.5.
	Threshold float64 `yaml:"threshold"`

	// RMSThreshold tunes the energy backend. Default: 500.
	RMSThreshold float64 `yaml:"rms_threshold"`
}

// SegmenterConfig tunes utterance endpointing.
type SegmenterConfig struct {
	// EndpointFrames is the consecutive-silence run that ends an
	// utterance. Default: 15 (480 ms at 512 samples / 16 kHz).
	EndpointFrames int `yaml:"endpoint_frames"`

	// MinSpeechFrames is the minimum speech portion an utterance needs to
	// be transcribed instead of discarded. Default: 5.
	MinSpeechFrames int `yaml:"min_speech_frames"`
}

// ProviderEntry is the common configuration block shared by STT and TTS
// backend entries.
type ProviderEntry struct {
	// Name selects the implementation. STT: "openai", "whisper-server",
	// "whisper-cpp". TTS: "openai", "coqui".
	Name string `yaml:"name"`

	// APIKey authenticates hosted providers.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides a hosted provider's endpoint, or sets the server
	// URL for whisper-server and coqui.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g., "whisper-1") or
	// the model file path for whisper-cpp.
	Model string `yaml:"model"`

	// Language is a recognition/synthesis language hint.
	Language string `yaml:"language"`

	// Voice selects a TTS voice preset where supported.
	Voice string `yaml:"voice"`
}

// STTConfig declares the transcription chain, primary first.
type STTConfig struct {
	// Chain lists backends in preference order. The first entry is the
	// primary; later entries are fallbacks.
	Chain []ProviderEntry `yaml:"chain"`

	// MaxInFlight bounds concurrent recognitions. Default: 2.
	MaxInFlight int `yaml:"max_in_flight"`

	// ExtraFillers extends the built-in hallucination blocklist with
	// deployment-specific phrases, matched against the whole normalized
	// utterance.
	ExtraFillers []string `yaml:"extra_fillers"`
}

// TTSConfig declares the synthesis chain, primary first.
type TTSConfig struct {
	Chain []ProviderEntry `yaml:"chain"`
}

// WakeWordConfig gates the pipeline on an activation phrase.
type WakeWordConfig struct {
	// Word is the activation phrase. Empty disables gating: every
	// utterance is processed.
	Word string `yaml:"word"`

	// Aliases are extra spellings accepted verbatim.
	Aliases []string `yaml:"aliases"`

	// PhoneticThreshold is the Jaro-Winkler score required for a
	// phonetically-matched word. Default: 0.70.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the Jaro-Winkler score required without a
	// phonetic match. Default: 0.85.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// LLMConfig configures the demo assistant's reasoning backend.
type LLMConfig struct {
	// Provider is one of the any-llm backends: "openai", "anthropic",
	// "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp".
	Provider string `yaml:"provider"`

	// Model is the model ID (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// APIKey authenticates the backend. Empty falls back to the
	// provider's environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend endpoint.
	BaseURL string `yaml:"base_url"`

	// SystemPrompt is prepended to every completion.
	SystemPrompt string `yaml:"system_prompt"`
}

// ResilienceConfig tunes the per-backend circuit breakers.
type ResilienceConfig struct {
	// FailureThreshold is the consecutive-failure count that opens a
	// breaker. Default: 3.
	FailureThreshold int `yaml:"failure_threshold"`

	// Cooldown is how long an open breaker waits before probing.
	// Default: 30s.
	Cooldown time.Duration `yaml:"cooldown"`

	// ProbeCount is how many successful probes close a half-open
	// breaker. Default: 2.
	ProbeCount int `yaml:"probe_count"`
}
