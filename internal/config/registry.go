package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/provider/asr"
	"github.com/codevox-dev/codevox/pkg/provider/denoise"
	"github.com/codevox-dev/codevox/pkg/provider/llm"
	"github.com/codevox-dev/codevox/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// SourceOpener opens (or reopens) an audio source. The pipeline calls it
// again after a device failure.
type SourceOpener func(ctx context.Context) (audio.Source, error)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	llm     map[string]func(ProviderEntry) (llm.Provider, error)
	asr     map[string]func(TranscriberConfig) (asr.Transcriber, error)
	vad     map[string]func(VADConfig) (vad.Engine, error)
	denoise map[string]func(DenoiseConfig) (denoise.Suppressor, error)
	audio   map[string]func(AudioConfig) (SourceOpener, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:     make(map[string]func(ProviderEntry) (llm.Provider, error)),
		asr:     make(map[string]func(TranscriberConfig) (asr.Transcriber, error)),
		vad:     make(map[string]func(VADConfig) (vad.Engine, error)),
		denoise: make(map[string]func(DenoiseConfig) (denoise.Suppressor, error)),
		audio:   make(map[string]func(AudioConfig) (SourceOpener, error)),
	}
}

// RegisterLLM registers a correction-model provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterASR registers a transcriber factory under name.
func (r *Registry) RegisterASR(name string, factory func(TranscriberConfig) (asr.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(VADConfig) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterDenoise registers a noise-suppressor factory under name.
func (r *Registry) RegisterDenoise(name string, factory func(DenoiseConfig) (denoise.Suppressor, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denoise[name] = factory
}

// RegisterAudio registers an audio source factory under name.
func (r *Registry) RegisterAudio(name string, factory func(AudioConfig) (SourceOpener, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateLLM instantiates a correction-model provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateASR instantiates a transcriber. The provider name is implied by the
// build: "whisper" is the only compiled-in decoder.
func (r *Registry) CreateASR(name string, cfg TranscriberConfig) (asr.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.asr[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, name)
	}
	return factory(cfg)
}

// CreateVAD instantiates a VAD engine using the factory registered under
// cfg.Engine.
func (r *Registry) CreateVAD(cfg VADConfig) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[cfg.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, cfg.Engine)
	}
	return factory(cfg)
}

// CreateDenoise instantiates a noise suppressor using the factory registered
// under cfg.Provider.
func (r *Registry) CreateDenoise(cfg DenoiseConfig) (denoise.Suppressor, error) {
	r.mu.RLock()
	factory, ok := r.denoise[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: denoise/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

// CreateAudio returns a source opener using the factory registered under
// cfg.Source.
func (r *Registry) CreateAudio(cfg AudioConfig) (SourceOpener, error) {
	r.mu.RLock()
	factory, ok := r.audio[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, cfg.Source)
	}
	return factory(cfg)
}
