package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/codevox-dev/codevox/internal/config"
	"github.com/codevox-dev/codevox/pkg/audio"
	audiomock "github.com/codevox-dev/codevox/pkg/audio/mock"
	"github.com/codevox-dev/codevox/pkg/provider/asr"
	asrmock "github.com/codevox-dev/codevox/pkg/provider/asr/mock"
	"github.com/codevox-dev/codevox/pkg/provider/denoise"
	denoisemock "github.com/codevox-dev/codevox/pkg/provider/denoise/mock"
	"github.com/codevox-dev/codevox/pkg/provider/llm"
	llmmock "github.com/codevox-dev/codevox/pkg/provider/llm/mock"
	"github.com/codevox-dev/codevox/pkg/provider/vad"
	vadmock "github.com/codevox-dev/codevox/pkg/provider/vad/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: "127.0.0.1:9090"
  log_level: info

audio:
  source: portaudio
  device: "USB Microphone"
  sample_rate: 16000
  frame_ms: 20

vad:
  engine: energy
  speech_threshold: 0.6
  silence_threshold: 0.4
  onset_frames: 3
  hangover_ms: 400
  preroll_ms: 1000

denoise:
  enabled: true
  provider: noisegate

transcriber:
  model: base.en
  models_dir: ./models
  language: en
  decode_timeout_ms: 30000

corrector:
  enabled: true
  primary:
    name: ollama
    base_url: http://localhost:11434
    model: qwen2.5-coder:7b
  temperature: 0.1
  timeout_ms: 15000

history:
  path: ./history.db
  retention_days: 30
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, "127.0.0.1:9090")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Audio.Device != "USB Microphone" {
		t.Errorf("audio.device: got %q", cfg.Audio.Device)
	}
	if cfg.VAD.SpeechThreshold != 0.6 {
		t.Errorf("vad.speech_threshold: got %.3f, want 0.6", cfg.VAD.SpeechThreshold)
	}
	if !cfg.Denoise.Enabled || cfg.Denoise.Provider != "noisegate" {
		t.Errorf("denoise: got %+v", cfg.Denoise)
	}
	if cfg.Transcriber.Model != "base.en" {
		t.Errorf("transcriber.model: got %q", cfg.Transcriber.Model)
	}
	if cfg.Corrector.Primary.BaseURL != "http://localhost:11434" {
		t.Errorf("corrector.primary.base_url: got %q", cfg.Corrector.Primary.BaseURL)
	}
	if cfg.Corrector.Temperature != 0.1 {
		t.Errorf("corrector.temperature: got %.2f, want 0.1", cfg.Corrector.Temperature)
	}
	if cfg.History.Path != "./history.db" {
		t.Errorf("history.path: got %q", cfg.History.Path)
	}
}

func TestLoadFromReader_MinimalIsValid(t *testing.T) {
	// Only the transcriber model is required; everything else defaults.
	yaml := `
transcriber:
  model: base.en
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error for minimal config: %v", err)
	}
	if cfg.Corrector.Enabled {
		t.Error("corrector should default to disabled")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
transcriber:
  model: base.en
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidFrameMs(t *testing.T) {
	yaml := `
audio:
  frame_ms: 500
transcriber:
  model: base.en
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range frame_ms, got nil")
	}
	if !strings.Contains(err.Error(), "frame_ms") {
		t.Errorf("error should mention frame_ms, got: %v", err)
	}
}

func TestValidate_InvalidTemperature(t *testing.T) {
	yaml := `
transcriber:
  model: base.en
corrector:
  enabled: true
  primary:
    name: ollama
  temperature: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range temperature, got nil")
	}
	if !strings.Contains(err.Error(), "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
}

func TestValidate_NegativeRetention(t *testing.T) {
	yaml := `
transcriber:
  model: base.en
history:
  retention_days: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative retention_days, got nil")
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownLLM(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "nonexistent"})
	if err == nil {
		t.Fatal("expected error for unknown LLM provider")
	}
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownASR(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateASR("nonexistent", config.TranscriberConfig{})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownVAD(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateVAD(config.VADConfig{Engine: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownDenoise(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateDenoise(config.DenoiseConfig{Provider: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownAudio(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateAudio(config.AudioConfig{Source: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

// ── Registry with registered factories ───────────────────────────────────────

func TestRegistry_RegisteredLLM(t *testing.T) {
	reg := config.NewRegistry()
	want := &llmmock.Provider{}
	reg.RegisterLLM("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateLLM(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredASR(t *testing.T) {
	reg := config.NewRegistry()
	want := &asrmock.Transcriber{}
	reg.RegisterASR("stub", func(c config.TranscriberConfig) (asr.Transcriber, error) {
		return want, nil
	})
	got, err := reg.CreateASR("stub", config.TranscriberConfig{Model: "base.en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned transcriber is not the expected instance")
	}
}

func TestRegistry_RegisteredVAD(t *testing.T) {
	reg := config.NewRegistry()
	want := &vadmock.Engine{}
	reg.RegisterVAD("stub", func(c config.VADConfig) (vad.Engine, error) {
		return want, nil
	})
	got, err := reg.CreateVAD(config.VADConfig{Engine: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned engine is not the expected instance")
	}
}

func TestRegistry_RegisteredDenoise(t *testing.T) {
	reg := config.NewRegistry()
	want := &denoisemock.Suppressor{}
	reg.RegisterDenoise("stub", func(c config.DenoiseConfig) (denoise.Suppressor, error) {
		return want, nil
	})
	got, err := reg.CreateDenoise(config.DenoiseConfig{Provider: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned suppressor is not the expected instance")
	}
}

func TestRegistry_RegisteredAudio(t *testing.T) {
	reg := config.NewRegistry()
	src := audiomock.NewSource(1)
	reg.RegisterAudio("stub", func(c config.AudioConfig) (config.SourceOpener, error) {
		return func(context.Context) (audio.Source, error) { return src, nil }, nil
	})
	open, err := reg.CreateAudio(config.AudioConfig{Source: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != audio.Source(src) {
		t.Error("returned source is not the expected instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLLM("broken", func(e config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}
