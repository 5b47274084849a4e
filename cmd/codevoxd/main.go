// Command codevoxd is the codevox dictation daemon: it captures microphone
// audio, gates it into utterances, transcribes them on-device with
// whisper.cpp, corrects them with a local LLM, and emits the corrected text
// in strict utterance order.
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
	"sync"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codevox-dev/codevox/internal/bias"
	"github.com/codevox-dev/codevox/internal/config"
	"github.com/codevox-dev/codevox/internal/contextindex"
	"github.com/codevox-dev/codevox/internal/correct"
	"github.com/codevox-dev/codevox/internal/gate"
	"github.com/codevox-dev/codevox/internal/health"
	"github.com/codevox-dev/codevox/internal/history"
	"github.com/codevox-dev/codevox/internal/modelreg"
	"github.com/codevox-dev/codevox/internal/observe"
	"github.com/codevox-dev/codevox/internal/pipeline"
	"github.com/codevox-dev/codevox/internal/resilience"
	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/audio/portaudio"
	"github.com/codevox-dev/codevox/pkg/audio/wavsource"
	"github.com/codevox-dev/codevox/pkg/provider/asr"
	"github.com/codevox-dev/codevox/pkg/provider/asr/speculative"
	"github.com/codevox-dev/codevox/pkg/provider/asr/whisper"
	"github.com/codevox-dev/codevox/pkg/provider/denoise"
	"github.com/codevox-dev/codevox/pkg/provider/denoise/noisegate"
	"github.com/codevox-dev/codevox/pkg/provider/llm"
	"github.com/codevox-dev/codevox/pkg/provider/llm/anyllm"
	oaillm "github.com/codevox-dev/codevox/pkg/provider/llm/openai"
	"github.com/codevox-dev/codevox/pkg/provider/vad"
	"github.com/codevox-dev/codevox/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	wavPath := flag.String("wav", "", "transcribe this WAV file instead of capturing from the microphone")
	listModels := flag.Bool("list-models", false, "print the model catalogue and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "codevoxd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "codevoxd: %v\n", err)
		}
		return 1
	}

	if *wavPath != "" {
		cfg.Audio.Source = "wav"
		cfg.Audio.WavPath = *wavPath
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logger := newLogger(cfg.Server.LogLevel, logLevel)
	slog.SetDefault(logger)

	if *listModels {
		printModelCatalogue(modelsDir(cfg.Transcriber.ModelsDir))
		return 0
	}

	slog.Info("codevoxd starting",
		"config", *configPath,
		"audio_source", cfg.Audio.Source,
		"model", cfg.Transcriber.Model,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "codevox"})
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

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	openSource, err := reg.CreateAudio(cfg.Audio)
	if err != nil {
		slog.Error("failed to configure audio source", "source", cfg.Audio.Source, "err", err)
		return 1
	}

	utteranceGate, err := buildGate(cfg, reg)
	if err != nil {
		slog.Error("failed to build utterance gate", "err", err)
		return 1
	}

	deps := pipeline.Deps{
		OpenSource: openSource,
		Gate:       utteranceGate,
		Bias:       bias.NewBuilder(),
	}

	if cfg.Denoise.Enabled {
		deps.Denoiser, err = reg.CreateDenoise(cfg.Denoise)
		if err != nil {
			slog.Error("failed to build noise suppressor", "provider", cfg.Denoise.Provider, "err", err)
			return 1
		}
	}

	deps.Transcriber, err = reg.CreateASR("whisper", cfg.Transcriber)
	if err != nil {
		slog.Error("failed to load transcription model", "model", cfg.Transcriber.Model, "err", err)
		return 1
	}

	deps.Corrector, err = buildCorrector(cfg, reg)
	if err != nil {
		slog.Error("failed to build corrector", "err", err)
		return 1
	}

	indexer := contextindex.NewStatic(cfg.Context.Language, cfg.Context.Keywords)
	deps.Indexer = indexer

	// ── History store ─────────────────────────────────────────────────────────
	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		slog.Error("failed to open history store", "path", cfg.History.Path, "err", err)
		return 1
	}
	defer store.Close()

	var sink pipeline.Sink = pipeline.NewWriterSink(os.Stdout)
	sink = history.NewSink(sink, store, cfg.Transcriber.Model)

	// During a WAV replay, collect per-stage timings and print a summary at
	// the end of the run.
	var collector *timingCollector
	if *wavPath != "" {
		collector = &timingCollector{next: sink}
		sink = collector
	}
	deps.Sink = sink

	// ── Diagnostics server (optional) ─────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		srv := startDiagnostics(cfg.Server.ListenAddr, health.Checker{
			Name:  "history",
			Check: store.Ping,
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("diagnostics server shutdown error", "err", err)
			}
		}()
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(old, new, logLevel, indexer)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)

	pl, err := pipeline.New(deps, pipeline.Config{
		Language:          cfg.Transcriber.Language,
		TranscribeTimeout: msDuration(cfg.Transcriber.DecodeTimeoutMs),
		CorrectTimeout:    msDuration(cfg.Corrector.TimeoutMs),
	})
	if err != nil {
		slog.Error("failed to assemble pipeline", "err", err)
		return 1
	}

	slog.Info("listening — press Ctrl+C to stop")

	if err := pl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("pipeline error", "err", err)
		return 1
	}
	if collector != nil {
		printReplaySummary(collector.take())
	}
	slog.Info("goodbye")
	return 0
}

// ── WAV replay summary ────────────────────────────────────────────────────────

// timingCollector is a sink decorator that records delivered results so their
// stage timings can be summarised after a replay.
type timingCollector struct {
	next pipeline.Sink

	mu      sync.Mutex
	results []pipeline.Result
}

func (c *timingCollector) EmitPartial(seq uint64, text string) { c.next.EmitPartial(seq, text) }
func (c *timingCollector) EmitState(state pipeline.State)      { c.next.EmitState(state) }

func (c *timingCollector) EmitResult(res pipeline.Result) {
	if !res.Suppressed {
		c.mu.Lock()
		c.results = append(c.results, res)
		c.mu.Unlock()
	}
	c.next.EmitResult(res)
}

func (c *timingCollector) take() []pipeline.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.results
	c.results = nil
	return out
}

func printReplaySummary(results []pipeline.Result) {
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "replay produced no utterances")
		return
	}
	fmt.Fprintf(os.Stderr, "\nreplay summary — %d utterance(s)\n", len(results))
	fmt.Fprintf(os.Stderr, "  %-4s  %-10s %-10s %-10s %-10s\n", "seq", "denoise", "decode", "correct", "total")
	var sum pipeline.StageTiming
	for _, r := range results {
		t := r.Timing
		fmt.Fprintf(os.Stderr, "  %-4d  %-10s %-10s %-10s %-10s\n",
			r.Seq, stageLabel(t.Denoise), stageLabel(t.Transcribe), stageLabel(t.Correct), stageLabel(t.Total))
		sum.Denoise += t.Denoise
		sum.Transcribe += t.Transcribe
		sum.Correct += t.Correct
		sum.Total += t.Total
	}
	fmt.Fprintf(os.Stderr, "  %-4s  %-10s %-10s %-10s %-10s\n",
		"all", stageLabel(sum.Denoise), stageLabel(sum.Transcribe), stageLabel(sum.Correct), stageLabel(sum.Total))
}

func stageLabel(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Correction LLMs ───────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai-native talks to the OpenAI API through the official SDK rather
	// than the any-llm adapter.
	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Transcriber ───────────────────────────────────────────────────────────

	reg.RegisterASR("whisper", func(cfg config.TranscriberConfig) (asr.Transcriber, error) {
		verifier, err := loadWhisper(cfg.ModelsDir, cfg.Model, cfg.Language)
		if err != nil {
			return nil, err
		}
		if cfg.DraftModel == "" {
			return verifier, nil
		}
		draft, err := loadWhisper(cfg.ModelsDir, cfg.DraftModel, cfg.Language)
		if err != nil {
			return nil, err
		}
		return speculative.New(draft, verifier), nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(config.VADConfig) (vad.Engine, error) {
		return energy.New(), nil
	})

	// ── Noise suppression ─────────────────────────────────────────────────────

	reg.RegisterDenoise("noisegate", func(config.DenoiseConfig) (denoise.Suppressor, error) {
		return noisegate.New(), nil
	})

	// ── Audio sources ─────────────────────────────────────────────────────────

	reg.RegisterAudio("portaudio", func(cfg config.AudioConfig) (config.SourceOpener, error) {
		var opts []portaudio.Option
		if cfg.Device != "" {
			opts = append(opts, portaudio.WithDevice(cfg.Device))
		}
		if cfg.SampleRate > 0 {
			opts = append(opts, portaudio.WithSampleRate(cfg.SampleRate))
		}
		if cfg.FrameMs > 0 {
			opts = append(opts, portaudio.WithFrameMs(cfg.FrameMs))
		}
		return func(context.Context) (audio.Source, error) {
			return portaudio.New(opts...)
		}, nil
	})

	reg.RegisterAudio("wav", func(cfg config.AudioConfig) (config.SourceOpener, error) {
		if cfg.WavPath == "" {
			return nil, errors.New("audio source \"wav\" requires audio.wav_path")
		}
		var opts []wavsource.Option
		if cfg.SampleRate > 0 {
			opts = append(opts, wavsource.WithSampleRate(cfg.SampleRate))
		}
		if cfg.FrameMs > 0 {
			opts = append(opts, wavsource.WithFrameMs(cfg.FrameMs))
		}
		return func(context.Context) (audio.Source, error) {
			return wavsource.New(cfg.WavPath, opts...)
		}, nil
	})
}

// loadWhisper resolves ref against the model catalogue, sanity-checks the
// file header, and loads it.
func loadWhisper(dir, ref, lang string) (*whisper.Transcriber, error) {
	path, err := modelreg.Resolve(modelsDir(dir), ref)
	if err != nil {
		return nil, err
	}
	if err := modelreg.ValidateFile(path); err != nil {
		return nil, err
	}
	var opts []whisper.Option
	if lang != "" {
		opts = append(opts, whisper.WithLanguage(lang))
	}
	return whisper.New(path, opts...)
}

// buildGate creates the VAD session and wraps it in the utterance gate.
func buildGate(cfg *config.Config, reg *config.Registry) (*gate.Gate, error) {
	engine, err := reg.CreateVAD(cfg.VAD)
	if err != nil {
		return nil, err
	}
	session, err := engine.NewSession(vad.Config{
		SampleRate:       orDefault(cfg.Audio.SampleRate, 16000),
		FrameSizeMs:      orDefault(cfg.Audio.FrameMs, 20),
		SpeechThreshold:  cfg.VAD.SpeechThreshold,
		SilenceThreshold: cfg.VAD.SilenceThreshold,
	})
	if err != nil {
		return nil, err
	}
	return gate.New(session, gate.Config{
		OnsetFrames: cfg.VAD.OnsetFrames,
		HangoverMs:  cfg.VAD.HangoverMs,
		PrerollMs:   cfg.VAD.PrerollMs,
	}), nil
}

// buildCorrector instantiates the primary correction provider plus any
// fallbacks and wraps them in a fallback group. Returns nil when correction
// is disabled.
func buildCorrector(cfg *config.Config, reg *config.Registry) (*correct.Corrector, error) {
	if !cfg.Corrector.Enabled {
		return nil, nil
	}
	primary, err := reg.CreateLLM(cfg.Corrector.Primary)
	if err != nil {
		return nil, fmt.Errorf("create corrector provider %q: %w", cfg.Corrector.Primary.Name, err)
	}
	group := resilience.NewFallbackGroup[llm.Provider](primary, cfg.Corrector.Primary.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Corrector.Fallbacks {
		fb, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create corrector fallback %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, fb)
		slog.Info("corrector fallback registered", "name", entry.Name, "model", entry.Model)
	}

	var opts []correct.Option
	if cfg.Corrector.Temperature > 0 {
		opts = append(opts, correct.WithTemperature(cfg.Corrector.Temperature))
	}
	return correct.New(group, opts...), nil
}

// ── Diagnostics server ────────────────────────────────────────────────────────

// startDiagnostics serves /healthz, /readyz, and /metrics on addr. The server
// runs until Shutdown is called.
func startDiagnostics(addr string, checkers ...health.Checker) *http.Server {
	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("diagnostics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("diagnostics server error", "err", err)
		}
	}()
	return srv
}

// ── Config hot reload ─────────────────────────────────────────────────────────

// applyConfigChange applies the hot-reloadable parts of a config change and
// logs what needs a restart.
func applyConfigChange(old, new *config.Config, logLevel *slog.LevelVar, indexer *contextindex.Static) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ContextChanged {
		keywords := make([]contextindex.Keyword, 0, len(new.Context.Keywords))
		for i, kw := range new.Context.Keywords {
			keywords = append(keywords, contextindex.Keyword{Text: kw, Rank: i})
		}
		indexer.Update(contextindex.Snapshot{
			Keywords: keywords,
			Language: new.Context.Language,
		})
		slog.Info("context keywords reloaded", "count", len(keywords))
	}
	if d.VADChanged || d.DenoiseChanged || d.CorrectorChanged || d.RestartRequired {
		slog.Warn("config change requires a restart to take effect")
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         codevox — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Audio", sourceLabel(cfg.Audio))
	printRow("VAD", orDefaultStr(cfg.VAD.Engine, "energy"))
	printRow("Denoise", enabledLabel(cfg.Denoise.Enabled, cfg.Denoise.Provider))
	printRow("Model", cfg.Transcriber.Model)
	printRow("Draft model", orDefaultStr(cfg.Transcriber.DraftModel, "(disabled)"))
	if cfg.Corrector.Enabled {
		printRow("Corrector", cfg.Corrector.Primary.Name+" / "+cfg.Corrector.Primary.Model)
	} else {
		printRow("Corrector", "(disabled)")
	}
	printRow("History", orDefaultStr(cfg.History.Path, "(ephemeral)"))
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 22 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-12s : %-22s ║\n", kind, value)
}

func sourceLabel(cfg config.AudioConfig) string {
	if cfg.Source == "wav" {
		return "wav / " + cfg.WavPath
	}
	if cfg.Device != "" {
		return "portaudio / " + cfg.Device
	}
	return "portaudio / default device"
}

func enabledLabel(enabled bool, provider string) string {
	if !enabled {
		return "(disabled)"
	}
	return orDefaultStr(provider, "noisegate")
}

// ── Model catalogue ───────────────────────────────────────────────────────────

func printModelCatalogue(dir string) {
	installed, err := modelreg.Installed(dir)
	if err != nil {
		slog.Warn("could not scan models dir", "dir", dir, "err", err)
	}
	have := make(map[string]bool, len(installed))
	for _, m := range installed {
		have[m.Name] = true
	}

	fmt.Printf("whisper.cpp model catalogue (models dir: %s)\n\n", dir)
	for _, name := range modelreg.Names() {
		model, err := modelreg.Find(name)
		if err != nil {
			continue
		}
		mark := " "
		if have[name] {
			mark = "*"
		}
		fmt.Printf("  %s %-14s %5d MB  %s\n", mark, name, model.SizeMB, model.Filename)
	}
	fmt.Println("\n  * installed")
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, lvl *slog.LevelVar) *slog.Logger {
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func modelsDir(dir string) string {
	if dir == "" {
		return "models"
	}
	return dir
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func orDefaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
