// Package portaudio implements [audio.Source] on top of the PortAudio capture
// API via github.com/gordonklaus/portaudio. The device callback writes raw
// samples into a lock-free ring; a reader goroutine drains the ring,
// downmixes and resamples to the canonical pipeline rate, and emits
// fixed-duration frames.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	palib "github.com/gordonklaus/portaudio"

	"github.com/codevox-dev/codevox/pkg/audio"
)

const (
	defaultFrameMs    = 20
	defaultSampleRate = audio.DefaultSampleRate

	// ringSeconds sizes the callback ring. Half a second absorbs scheduler
	// hiccups without the callback ever lapping the reader in practice.
	ringSeconds = 0.5
)

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithDevice selects the capture device by name substring. An empty string
// (the default) uses the system default input device.
func WithDevice(name string) Option {
	return func(s *Source) { s.deviceName = name }
}

// WithFrameMs sets the emitted frame duration in milliseconds. Default: 20.
func WithFrameMs(ms int) Option {
	return func(s *Source) { s.frameMs = ms }
}

// WithSampleRate sets the output sample rate in Hz. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// Source captures live microphone audio. It implements [audio.Source].
type Source struct {
	deviceName string
	frameMs    int
	sampleRate int

	stream     *palib.Stream
	deviceRate int
	channels   int

	ring    *audio.Ring
	frames  chan audio.Frame
	dropped atomic.Uint64

	mu      sync.Mutex
	err     error
	done    chan struct{}
	once    sync.Once
	readerW sync.WaitGroup
}

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// New opens the capture device and starts streaming. PortAudio is initialised
// on first use; the caller must call Close to release the device.
//
// Returns an error wrapping [audio.ErrDeviceUnavailable] if the device cannot
// be opened, so callers can detect the retryable class with errors.Is.
func New(opts ...Option) (*Source, error) {
	s := &Source{
		frameMs:    defaultFrameMs,
		sampleRate: defaultSampleRate,
		frames:     make(chan audio.Frame, 64),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	if err := palib.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	dev, err := s.pickDevice()
	if err != nil {
		_ = palib.Terminate()
		return nil, err
	}

	s.deviceRate = int(dev.DefaultSampleRate)
	s.channels = 1
	if dev.MaxInputChannels < 1 {
		_ = palib.Terminate()
		return nil, fmt.Errorf("portaudio: device %q has no input channels: %w", dev.Name, audio.ErrDeviceUnavailable)
	}
	s.ring = audio.NewRing(int(float64(s.deviceRate) * ringSeconds))

	params := palib.LowLatencyParameters(dev, nil)
	params.Input.Channels = s.channels
	params.SampleRate = float64(s.deviceRate)
	params.FramesPerBuffer = 0 // let PortAudio choose

	stream, err := palib.OpenStream(params, s.captureCallback)
	if err != nil {
		_ = palib.Terminate()
		return nil, fmt.Errorf("portaudio: open stream on %q: %w: %w", dev.Name, audio.ErrDeviceUnavailable, err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = palib.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	slog.Info("audio capture started",
		"device", dev.Name,
		"device_rate", s.deviceRate,
		"pipeline_rate", s.sampleRate,
		"frame_ms", s.frameMs,
	)

	s.readerW.Add(1)
	go s.readLoop()

	return s, nil
}

// pickDevice resolves the configured device name to a PortAudio device,
// falling back to the default input device when no name is set.
func (s *Source) pickDevice() (*palib.DeviceInfo, error) {
	if s.deviceName == "" {
		dev, err := palib.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("portaudio: default input device: %w: %w", audio.ErrDeviceUnavailable, err)
		}
		return dev, nil
	}

	devices, err := palib.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), strings.ToLower(s.deviceName)) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("portaudio: no input device matching %q: %w", s.deviceName, audio.ErrDeviceUnavailable)
}

// captureCallback runs on the PortAudio callback thread. It must not block,
// allocate heavily, or touch locks shared with the reader; it only writes
// into the SPSC ring. When the ring is full the newest samples are dropped;
// the drop total is reported from the reader goroutine.
func (s *Source) captureCallback(in []float32) {
	if n := s.ring.Write(in); n > 0 {
		s.dropped.Add(uint64(n))
	}
}

// readLoop drains the ring, resamples to the pipeline rate, and emits frames.
func (s *Source) readLoop() {
	defer s.readerW.Done()
	defer close(s.frames)

	deviceSamplesPerFrame := s.deviceRate * s.frameMs / 1000
	buf := make([]float32, deviceSamplesPerFrame)
	fill := 0

	var elapsed time.Duration
	frameDur := time.Duration(s.frameMs) * time.Millisecond
	ticker := time.NewTicker(frameDur / 2)
	defer ticker.Stop()

	var reportedDrops uint64
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		if d := s.dropped.Load(); d > reportedDrops {
			slog.Warn("capture ring overflow, samples dropped", "dropped", d-reportedDrops)
			reportedDrops = d
		}

		for {
			n := s.ring.Read(buf[fill:])
			fill += n
			if fill < len(buf) {
				break
			}

			samples := audio.ResampleMono(buf, s.deviceRate, s.sampleRate)
			out := make([]float32, len(samples))
			copy(out, samples)

			frame := audio.Frame{
				Samples:    out,
				SampleRate: s.sampleRate,
				Timestamp:  elapsed,
			}
			elapsed += frameDur
			fill = 0

			select {
			case s.frames <- frame:
			case <-s.done:
				return
			}
		}
	}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Err implements [audio.Source].
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops capture, terminates PortAudio, and closes the frame stream.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.readerW.Wait()
		if s.stream != nil {
			err = errors.Join(s.stream.Stop(), s.stream.Close())
		}
		err = errors.Join(err, palib.Terminate())
	})
	return err
}
