// Package wavsource implements [audio.Source] over a WAV file. It replays the
// file through the pipeline at a fixed frame size, which makes end-to-end
// runs deterministic — used by the -wav replay mode and by benchmarks.
package wavsource

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"github.com/codevox-dev/codevox/pkg/audio"
)

const defaultFrameMs = 20

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithFrameMs sets the emitted frame duration in milliseconds. Default: 20.
func WithFrameMs(ms int) Option {
	return func(s *Source) { s.frameMs = ms }
}

// WithSampleRate sets the output sample rate in Hz. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// WithRealtime makes the source pace frame emission at wall-clock speed
// instead of replaying as fast as the consumer drains. Default: off.
func WithRealtime() Option {
	return func(s *Source) { s.realtime = true }
}

// Source replays a WAV file as a frame stream. It implements [audio.Source].
type Source struct {
	frameMs    int
	sampleRate int
	realtime   bool

	samples []float32
	frames  chan audio.Frame

	mu   sync.Mutex
	err  error
	done chan struct{}
	once sync.Once
}

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// New decodes the WAV file at path, downmixes to mono, resamples to the
// pipeline rate, and starts emitting frames. The entire file is decoded up
// front; replay files are short by nature.
func New(path string, opts ...Option) (*Source, error) {
	s := &Source{
		frameMs:    defaultFrameMs,
		sampleRate: audio.DefaultSampleRate,
		frames:     make(chan audio.Frame, 64),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavsource: open %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavsource: decode %q: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wavsource: %q has no format header", path)
	}

	samples := audio.IntToFloat32(buf.Data, int(dec.BitDepth))
	if buf.Format.NumChannels == 2 {
		samples = audio.StereoToMono(samples)
	}
	s.samples = audio.ResampleMono(samples, buf.Format.SampleRate, s.sampleRate)

	go s.emitLoop()
	return s, nil
}

// emitLoop slices the decoded samples into frames and sends them downstream.
func (s *Source) emitLoop() {
	defer close(s.frames)

	samplesPerFrame := s.sampleRate * s.frameMs / 1000
	frameDur := time.Duration(s.frameMs) * time.Millisecond

	var ticker *time.Ticker
	if s.realtime {
		ticker = time.NewTicker(frameDur)
		defer ticker.Stop()
	}

	var elapsed time.Duration
	for off := 0; off < len(s.samples); off += samplesPerFrame {
		end := off + samplesPerFrame
		if end > len(s.samples) {
			end = len(s.samples)
		}

		frame := audio.Frame{
			Samples:    s.samples[off:end:end],
			SampleRate: s.sampleRate,
			Timestamp:  elapsed,
		}
		elapsed += frameDur

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-s.done:
				return
			}
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Err implements [audio.Source]. A replay source only fails at construction,
// so this is always nil.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops replay. Calling Close more than once is safe.
func (s *Source) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
