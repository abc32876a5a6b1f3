// Command voxkit runs the voice pipeline as a local assistant: it listens on
// the default microphone, transcribes detected utterances, sends them to the
// configured language model, and speaks the reply back through the default
// output device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxkit-dev/voxkit/internal/config"
	"github.com/voxkit-dev/voxkit/internal/health"
	"github.com/voxkit-dev/voxkit/internal/observe"
	"github.com/voxkit-dev/voxkit/internal/resilience"
	"github.com/voxkit-dev/voxkit/internal/transcript"
	"github.com/voxkit-dev/voxkit/internal/voice"
	"github.com/voxkit-dev/voxkit/internal/wakeword"
	"github.com/voxkit-dev/voxkit/pkg/audio"
	"github.com/voxkit-dev/voxkit/pkg/provider/llm"
	"github.com/voxkit-dev/voxkit/pkg/provider/llm/anyllm"
	"github.com/voxkit-dev/voxkit/pkg/provider/stt"
	oaistt "github.com/voxkit-dev/voxkit/pkg/provider/stt/openai"
	"github.com/voxkit-dev/voxkit/pkg/provider/stt/whisper"
	"github.com/voxkit-dev/voxkit/pkg/provider/tts"
	"github.com/voxkit-dev/voxkit/pkg/provider/tts/coqui"
	oaitts "github.com/voxkit-dev/voxkit/pkg/provider/tts/openai"
	"github.com/voxkit-dev/voxkit/pkg/provider/vad"
	"github.com/voxkit-dev/voxkit/pkg/provider/vad/energy"
	"github.com/voxkit-dev/voxkit/pkg/provider/vad/silero"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxkit: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxkit: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxkit starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxkit",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	detector, err := buildVAD(cfg)
	if err != nil {
		slog.Error("failed to build VAD", "err", err)
		return 1
	}
	classifier := vad.NewClassifier(detector, cfg.VAD.Threshold, cfg.Audio.BlockSize)

	transcriber, err := buildSTTChain(cfg, metrics)
	if err != nil {
		slog.Error("failed to build STT chain", "err", err)
		return 1
	}
	defer transcriber.Close()

	synthProvider, err := buildTTSChain(cfg, metrics)
	if err != nil {
		slog.Error("failed to build TTS chain", "err", err)
		return 1
	}

	reasoner, err := buildReasoner(cfg)
	if err != nil {
		slog.Error("failed to build reasoner", "err", err)
		return 1
	}
	if reasoner != nil {
		defer reasoner.Close()
	}

	var gate *wakeword.Gate
	if cfg.WakeWord.Word != "" {
		var opts []wakeword.Option
		if len(cfg.WakeWord.Aliases) > 0 {
			opts = append(opts, wakeword.WithAliases(cfg.WakeWord.Aliases...))
		}
		if cfg.WakeWord.PhoneticThreshold > 0 {
			opts = append(opts, wakeword.WithPhoneticThreshold(cfg.WakeWord.PhoneticThreshold))
		}
		if cfg.WakeWord.FuzzyThreshold > 0 {
			opts = append(opts, wakeword.WithFuzzyThreshold(cfg.WakeWord.FuzzyThreshold))
		}
		gate = wakeword.New(cfg.WakeWord.Word, opts...)
		slog.Info("wake word gating enabled", "word", cfg.WakeWord.Word)
	}

	// ── Audio I/O ─────────────────────────────────────────────────────────────
	source := audio.NewSource(audio.SourceConfig{
		SampleRate: cfg.Audio.SampleRate,
		BlockSize:  cfg.Audio.BlockSize,
		QueueDepth: cfg.Audio.QueueDepth,
	}, audio.NewMalgoCapture(cfg.Audio.SampleRate))

	player := audio.NewPlayer(audio.NewMalgoPlayback())
	synth := voice.NewSynthesizer(synthProvider, player, metrics)
	defer synth.Close()

	var filter *transcript.Filter
	if len(cfg.STT.ExtraFillers) > 0 {
		filter = transcript.NewFilter(cfg.STT.ExtraFillers...)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	pipeline, err := voice.New(voice.Config{
		Source:          source,
		Classifier:      classifier,
		Transcriber:     transcriber,
		Synthesizer:     synth,
		Gate:            gate,
		Filter:          filter,
		Metrics:         metrics,
		EndpointFrames:  cfg.Segmenter.EndpointFrames,
		MinSpeechFrames: cfg.Segmenter.MinSpeechFrames,
		MaxInFlight:     cfg.STT.MaxInFlight,
	})
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	// ── Observability endpoint ────────────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(
			health.Checker{Name: "pipeline", Check: pipeline.Ready},
		).Register(mux)

		srv = &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
		go func() {
			slog.Info("observability endpoint listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
	}

	printStartupSummary(cfg)

	// ── Run ───────────────────────────────────────────────────────────────────
	onTranscript := func(text string) {
		slog.Info("transcript", "text", text)
		if reasoner == nil {
			return
		}
		handleTurn(ctx, pipeline, reasoner, metrics, text)
	}

	if err := pipeline.Start(ctx, onTranscript); err != nil {
		slog.Error("failed to start pipeline", "err", err)
		return 1
	}

	slog.Info("listening — press Ctrl+C to shut down")
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	if err := pipeline.Stop(); err != nil {
		slog.Warn("pipeline stop error", "err", err)
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return 0
}

// handleTurn completes one conversational round trip: transcript in, spoken
// reply out. Runs on a recognition worker goroutine, so a slow completion
// never blocks frame consumption.
func handleTurn(ctx context.Context, p *voice.Pipeline, reasoner llm.Reasoner, metrics *observe.Metrics, text string) {
	ctx, span := observe.StartSpan(ctx, "voxkit.turn")
	defer span.End()

	start := time.Now()
	reply, err := reasoner.Process(ctx, text)
	if err != nil {
		observe.Logger(ctx).Error("completion failed", "err", err)
		metrics.RecordProviderError(ctx, "llm", "completion")
		return
	}
	metrics.RoundTripDuration.Record(ctx, time.Since(start).Seconds())

	if err := p.Speak(ctx, reply); err != nil {
		if errors.Is(err, voice.ErrInterrupted) {
			observe.Logger(ctx).Info("reply interrupted by speaker")
			return
		}
		observe.Logger(ctx).Error("playback failed", "err", err)
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildVAD(cfg *config.Config) (vad.Detector, error) {
	switch cfg.VAD.Backend {
	case "", "silero":
		det, err := silero.New(cfg.VAD.ModelPath, cfg.Audio.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("silero: %w", err)
		}
		slog.Info("VAD ready", "backend", "silero", "model", cfg.VAD.ModelPath)
		return det, nil
	case "energy":
		slog.Info("VAD ready", "backend", "energy", "rms_threshold", cfg.VAD.RMSThreshold)
		return energy.New(cfg.VAD.RMSThreshold), nil
	default:
		return nil, fmt.Errorf("unknown vad backend %q", cfg.VAD.Backend)
	}
}

func buildSTTProvider(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "openai":
		return oaistt.New(oaistt.Config{
			APIKey:   entry.APIKey,
			BaseURL:  entry.BaseURL,
			Model:    entry.Model,
			Language: entry.Language,
		})
	case "whisper-server":
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.BaseURL, opts...)
	case "whisper-cpp":
		var opts []whisper.NativeOption
		if entry.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(entry.Language))
		}
		return whisper.NewNative(entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func buildTTSProvider(entry config.ProviderEntry) (tts.Provider, error) {
	switch entry.Name {
	case "openai":
		return oaitts.New(oaitts.Config{
			APIKey:  entry.APIKey,
			BaseURL: entry.BaseURL,
			Model:   entry.Model,
			Voice:   entry.Voice,
		})
	case "coqui":
		var opts []coqui.Option
		if entry.Language != "" {
			opts = append(opts, coqui.WithLanguage(entry.Language))
		}
		if entry.Voice != "" {
			opts = append(opts, coqui.WithSpeaker(entry.Voice))
		}
		return coqui.New(entry.BaseURL, opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

// buildSTTChain instantiates every backend in the configured chain and wraps
// them in a circuit-breaking fallback group, primary first.
func buildSTTChain(cfg *config.Config, metrics *observe.Metrics) (stt.Provider, error) {
	providers := make([]stt.Provider, 0, len(cfg.STT.Chain))
	for i, entry := range cfg.STT.Chain {
		p, err := buildSTTProvider(entry)
		if err != nil {
			for _, built := range providers {
				built.Close()
			}
			return nil, fmt.Errorf("stt chain entry %d: %w", i, err)
		}
		providers = append(providers, p)
		slog.Info("provider created", "kind", "stt", "name", p.Name())
	}

	chain := resilience.NewSTTFallback(providers[0], fallbackConfig(cfg))
	for _, p := range providers[1:] {
		chain.AddFallback(p)
	}
	chain.OnSkip(func(name string, err error) {
		slog.Warn("stt backend skipped", "name", name, "err", err)
		metrics.RecordProviderError(context.Background(), name, "stt")
	})
	return chain, nil
}

func buildTTSChain(cfg *config.Config, metrics *observe.Metrics) (tts.Provider, error) {
	providers := make([]tts.Provider, 0, len(cfg.TTS.Chain))
	for i, entry := range cfg.TTS.Chain {
		p, err := buildTTSProvider(entry)
		if err != nil {
			for _, built := range providers {
				built.Close()
			}
			return nil, fmt.Errorf("tts chain entry %d: %w", i, err)
		}
		providers = append(providers, p)
		slog.Info("provider created", "kind", "tts", "name", p.Name())
	}

	chain := resilience.NewTTSFallback(providers[0], fallbackConfig(cfg))
	for _, p := range providers[1:] {
		chain.AddFallback(p)
	}
	chain.OnSkip(func(name string, err error) {
		slog.Warn("tts backend skipped", "name", name, "err", err)
		metrics.RecordProviderError(context.Background(), name, "tts")
	})
	return chain, nil
}

func fallbackConfig(cfg *config.Config) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		Breaker: resilience.BreakerConfig{
			FailureThreshold: cfg.Resilience.FailureThreshold,
			Cooldown:         cfg.Resilience.Cooldown,
			ProbeCount:       cfg.Resilience.ProbeCount,
		},
	}
}

// buildReasoner creates the conversational backend, or nil when no LLM is
// configured and the pipeline runs transcription-only.
func buildReasoner(cfg *config.Config) (llm.Reasoner, error) {
	if cfg.LLM.Provider == "" {
		slog.Info("no llm configured, running transcription-only")
		return nil, nil
	}

	var backendOpts []anyllmlib.Option
	if cfg.LLM.APIKey != "" {
		backendOpts = append(backendOpts, anyllmlib.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.BaseURL != "" {
		backendOpts = append(backendOpts, anyllmlib.WithBaseURL(cfg.LLM.BaseURL))
	}

	var opts []anyllm.Option
	if len(backendOpts) > 0 {
		opts = append(opts, anyllm.WithBackendOptions(backendOpts...))
	}
	if cfg.LLM.SystemPrompt != "" {
		opts = append(opts, anyllm.WithSystemPrompt(cfg.LLM.SystemPrompt))
	}

	r, err := anyllm.New(cfg.LLM.Provider, cfg.LLM.Model, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.LLM.Provider, "model", cfg.LLM.Model)
	return r, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          voxkit — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printLine("VAD", vadSummary(cfg))
	printLine("STT chain", chainSummary(cfg.STT.Chain))
	printLine("TTS chain", chainSummary(cfg.TTS.Chain))
	printLine("LLM", llmSummary(cfg))
	printLine("Wake word", orDisabled(cfg.WakeWord.Word))
	printLine("Listen addr", orDisabled(cfg.Server.ListenAddr))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printLine(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", kind, value)
}

func vadSummary(cfg *config.Config) string {
	if cfg.VAD.Backend == "" {
		return "silero"
	}
	return cfg.VAD.Backend
}

func chainSummary(chain []config.ProviderEntry) string {
	names := make([]string, len(chain))
	for i, e := range chain {
		names[i] = e.Name
	}
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " → "
		}
		out += n
	}
	return out
}

func llmSummary(cfg *config.Config) string {
	if cfg.LLM.Provider == "" {
		return "(disabled)"
	}
	if cfg.LLM.Model != "" {
		return cfg.LLM.Provider + " / " + cfg.LLM.Model
	}
	return cfg.LLM.Provider
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
