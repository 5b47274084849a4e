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

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":     {"openai", "openai-native", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"vad":     {"energy"},
	"denoise": {"noisegate"},
	"audio":   {"portaudio", "wav"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
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
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills the documented defaults for fields left at their zero
// value, so a minimal config selects the built-in providers. VAD thresholds
// and gate timings stay zero here; the engine and gate own those defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.Source == "" {
		cfg.Audio.Source = "portaudio"
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.FrameMs == 0 {
		cfg.Audio.FrameMs = 20
	}
	if cfg.VAD.Engine == "" {
		cfg.VAD.Engine = "energy"
	}
	if cfg.Denoise.Provider == "" {
		cfg.Denoise.Provider = "noisegate"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("audio", cfg.Audio.Source)
	validateProviderName("vad", cfg.VAD.Engine)
	validateProviderName("denoise", cfg.Denoise.Provider)
	validateProviderName("llm", cfg.Corrector.Primary.Name)
	for _, fb := range cfg.Corrector.Fallbacks {
		validateProviderName("llm", fb.Name)
	}

	// Audio
	if cfg.Audio.Source == "wav" && cfg.Audio.WavPath == "" {
		errs = append(errs, errors.New("audio.wav_path is required when audio.source is wav"))
	}
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMs < 0 || cfg.Audio.FrameMs > 100 {
		errs = append(errs, fmt.Errorf("audio.frame_ms %d is out of range [0, 100]", cfg.Audio.FrameMs))
	}

	// VAD thresholds are speech probabilities.
	if cfg.VAD.SpeechThreshold < 0 || cfg.VAD.SpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad.speech_threshold %.3f is out of range [0, 1]", cfg.VAD.SpeechThreshold))
	}
	if cfg.VAD.SilenceThreshold < 0 || cfg.VAD.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad.silence_threshold %.3f is out of range [0, 1]", cfg.VAD.SilenceThreshold))
	}
	if cfg.VAD.SpeechThreshold != 0 && cfg.VAD.SilenceThreshold > cfg.VAD.SpeechThreshold {
		errs = append(errs, fmt.Errorf("vad.silence_threshold %.3f must not exceed vad.speech_threshold %.3f",
			cfg.VAD.SilenceThreshold, cfg.VAD.SpeechThreshold))
	}
	if cfg.VAD.OnsetFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.onset_frames %d must be positive", cfg.VAD.OnsetFrames))
	}
	if cfg.VAD.HangoverMs < 0 {
		errs = append(errs, fmt.Errorf("vad.hangover_ms %d must be positive", cfg.VAD.HangoverMs))
	}

	// Transcriber
	if cfg.Transcriber.Model == "" {
		errs = append(errs, errors.New("transcriber.model is required"))
	}
	if cfg.Transcriber.DecodeTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("transcriber.decode_timeout_ms %d must be positive", cfg.Transcriber.DecodeTimeoutMs))
	}

	// Corrector
	if cfg.Corrector.Enabled && cfg.Corrector.Primary.Name == "" {
		errs = append(errs, errors.New("corrector.primary.name is required when corrector.enabled is true"))
	}
	if cfg.Corrector.Temperature < 0 || cfg.Corrector.Temperature > 2 {
		errs = append(errs, fmt.Errorf("corrector.temperature %.2f is out of range [0, 2]", cfg.Corrector.Temperature))
	}
	if !cfg.Corrector.Enabled && cfg.Corrector.Primary.Name != "" {
		slog.Warn("corrector.primary is configured but corrector.enabled is false; raw transcripts will be delivered")
	}

	// History
	if cfg.History.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("history.retention_days %d must not be negative", cfg.History.RetentionDays))
	}
	if cfg.History.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("history.max_entries %d must not be negative", cfg.History.MaxEntries))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
