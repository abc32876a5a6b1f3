package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known backend names per chain kind. Used by
// [Validate] to reject unrecognised entries.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "whisper-server", "whisper-cpp"},
	"tts": {"openai", "coqui"},
	"vad": {"silero", "energy"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("audio.block_size %d must not be negative", cfg.Audio.BlockSize))
	}

	// VAD
	if cfg.VAD.Backend != "" && !slices.Contains(ValidProviderNames["vad"], cfg.VAD.Backend) {
		errs = append(errs, fmt.Errorf("vad.backend %q is invalid; valid values: %v", cfg.VAD.Backend, ValidProviderNames["vad"]))
	}
	if (cfg.VAD.Backend == "" || cfg.VAD.Backend == "silero") && cfg.VAD.ModelPath == "" {
		errs = append(errs, errors.New("vad.model_path is required for the silero backend"))
	}
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %.2f is out of range [0, 1]", cfg.VAD.Threshold))
	}

	// Segmenter
	if cfg.Segmenter.EndpointFrames < 0 {
		errs = append(errs, fmt.Errorf("segmenter.endpoint_frames %d must not be negative", cfg.Segmenter.EndpointFrames))
	}
	if cfg.Segmenter.MinSpeechFrames < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_speech_frames %d must not be negative", cfg.Segmenter.MinSpeechFrames))
	}

	// STT chain
	if len(cfg.STT.Chain) == 0 {
		errs = append(errs, errors.New("stt.chain must list at least one backend"))
	}
	for i, e := range cfg.STT.Chain {
		errs = append(errs, validateChainEntry("stt", i, e)...)
	}
	if cfg.STT.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("stt.max_in_flight %d must not be negative", cfg.STT.MaxInFlight))
	}

	// TTS chain
	if len(cfg.TTS.Chain) == 0 {
		errs = append(errs, errors.New("tts.chain must list at least one backend"))
	}
	for i, e := range cfg.TTS.Chain {
		errs = append(errs, validateChainEntry("tts", i, e)...)
	}

	// Wake word thresholds
	if t := cfg.WakeWord.PhoneticThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("wake_word.phonetic_threshold %.2f is out of range [0, 1]", t))
	}
	if t := cfg.WakeWord.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("wake_word.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}

	// LLM
	if cfg.LLM.Provider != "" {
		if !slices.Contains(ValidProviderNames["llm"], cfg.LLM.Provider) {
			errs = append(errs, fmt.Errorf("llm.provider %q is invalid; valid values: %v", cfg.LLM.Provider, ValidProviderNames["llm"]))
		}
		if cfg.LLM.Model == "" {
			errs = append(errs, errors.New("llm.model is required when llm.provider is set"))
		}
	} else {
		slog.Warn("no llm provider configured; transcripts will be logged but not answered")
	}

	return errors.Join(errs...)
}

// validateChainEntry checks one STT or TTS chain entry.
func validateChainEntry(kind string, i int, e ProviderEntry) []error {
	var errs []error
	prefix := fmt.Sprintf("%s.chain[%d]", kind, i)

	if e.Name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		return errs
	}
	if !slices.Contains(ValidProviderNames[kind], e.Name) {
		errs = append(errs, fmt.Errorf("%s.name %q is invalid; valid values: %v", prefix, e.Name, ValidProviderNames[kind]))
		return errs
	}

	switch e.Name {
	case "openai":
		if e.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s: openai requires api_key", prefix))
		}
	case "whisper-server", "coqui":
		if e.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s: %s requires base_url", prefix, e.Name))
		}
	case "whisper-cpp":
		if e.Model == "" {
			errs = append(errs, fmt.Errorf("%s: whisper-cpp requires model (the ggml model file path)", prefix))
		}
	}
	return errs
}
