// Package config provides the configuration schema, loader, and provider
// registry for the codevox dictation daemon.
package config

import "github.com/codevox-dev/codevox/internal/history"

// LogLevel controls log verbosity for the daemon.
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

// Config is the root configuration structure for codevox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	VAD         VADConfig         `yaml:"vad"`
	Denoise     DenoiseConfig     `yaml:"denoise"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Corrector   CorrectorConfig   `yaml:"corrector"`
	Context     ContextConfig     `yaml:"context"`
	History     history.Config    `yaml:"history"`
}

// ServerConfig holds settings for the health and metrics listener.
type ServerConfig struct {
	// ListenAddr is the TCP address the diagnostics server listens on
	// (e.g., "127.0.0.1:9090"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig selects and tunes the capture source.
type AudioConfig struct {
	// Source selects the registered audio source ("portaudio" or "wav").
	// Defaults to "portaudio".
	Source string `yaml:"source"`

	// Device names the capture device. Empty uses the system default.
	Device string `yaml:"device"`

	// SampleRate is the capture rate in Hz. The pipeline operates at 16000;
	// other rates are resampled. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the capture frame duration in milliseconds. Defaults to 20.
	FrameMs int `yaml:"frame_ms"`

	// WavPath is the input file when Source is "wav".
	WavPath string `yaml:"wav_path"`
}

// VADConfig tunes the voice-activity detector and the utterance gate.
type VADConfig struct {
	// Engine selects the registered VAD implementation. Defaults to "energy".
	Engine string `yaml:"engine"`

	// SpeechThreshold is the speech probability above which a frame enters
	// the speech state. Range [0, 1]. Zero uses the engine default.
	SpeechThreshold float64 `yaml:"speech_threshold"`

	// SilenceThreshold is the speech probability below which a frame leaves
	// the speech state and the noise floor adapts. Must not exceed
	// SpeechThreshold. Zero uses the engine default.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// OnsetFrames is the number of consecutive speech frames confirming an
	// utterance start.
	OnsetFrames int `yaml:"onset_frames"`

	// HangoverMs is the trailing-silence duration that closes an utterance.
	HangoverMs int `yaml:"hangover_ms"`

	// PrerollMs bounds the audio prepended before onset confirmation.
	PrerollMs int `yaml:"preroll_ms"`
}

// DenoiseConfig controls the optional noise-suppression stage.
type DenoiseConfig struct {
	// Enabled switches the stage on. Disabled spans pass through untouched.
	Enabled bool `yaml:"enabled"`

	// Provider selects the registered suppressor. Defaults to "noisegate".
	Provider string `yaml:"provider"`
}

// TranscriberConfig configures the acoustic decode stage.
type TranscriberConfig struct {
	// Model is a catalogue name ("base.en") or a path to a ggml model file.
	Model string `yaml:"model"`

	// ModelsDir is where catalogue models are resolved. Defaults to
	// "models" under the working directory.
	ModelsDir string `yaml:"models_dir"`

	// Language is the ISO 639-1 transcription language. Empty lets the
	// model auto-detect.
	Language string `yaml:"language"`

	// DraftModel enables speculative decoding: the draft model's hypothesis
	// is delivered immediately and verified by Model in the background.
	DraftModel string `yaml:"draft_model"`

	// DecodeTimeoutMs bounds one transcription call. Defaults to 30000.
	DecodeTimeoutMs int `yaml:"decode_timeout_ms"`
}

// CorrectorConfig configures the semantic correction stage.
type CorrectorConfig struct {
	// Enabled switches correction on. When false, raw transcripts are
	// delivered as-is.
	Enabled bool `yaml:"enabled"`

	// Primary is the correction model used first.
	Primary ProviderEntry `yaml:"primary"`

	// Fallbacks are tried in order when the primary's circuit is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// Temperature overrides the correction sampling temperature. Zero uses
	// the corrector default.
	Temperature float64 `yaml:"temperature"`

	// TimeoutMs bounds one correction round trip. Defaults to 15000.
	TimeoutMs int `yaml:"timeout_ms"`
}

// ContextConfig seeds the editing-context snapshot when no editor
// integration is attached. The keywords bias the transcriber toward
// workspace identifiers and give the corrector its hint vocabulary.
type ContextConfig struct {
	// Language is the active language identifier ("go", "rust").
	Language string `yaml:"language"`

	// Keywords are workspace identifiers in relevance order.
	Keywords []string `yaml:"keywords"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "ollama",
	// "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any. Local
	// backends leave this empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. This is how a
	// local llama.cpp or vLLM server is addressed.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g.,
	// "qwen2.5-coder:7b").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}
