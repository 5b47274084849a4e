package wavsource_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	codevoxaudio "github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/audio/wavsource"
)

// writeTestWAV writes a 16-bit mono WAV with a 440 Hz tone and returns its path.
func writeTestWAV(t *testing.T, sampleRate int, durationMs int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	n := sampleRate * durationMs / 1000
	data := make([]int, n)
	for i := range data {
		data[i] = int(20000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}

func TestReplayEmitsExpectedFrameCount(t *testing.T) {
	t.Parallel()

	// 500 ms of 16 kHz audio at 20 ms frames → 25 frames.
	path := writeTestWAV(t, 16000, 500)

	src, err := wavsource.New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer src.Close()

	var frames int
	var samples int
	for f := range src.Frames() {
		if f.SampleRate != 16000 {
			t.Errorf("frame sample rate = %d, want 16000", f.SampleRate)
		}
		frames++
		samples += len(f.Samples)
	}
	if frames != 25 {
		t.Errorf("frames = %d, want 25", frames)
	}
	if samples != 8000 {
		t.Errorf("total samples = %d, want 8000", samples)
	}
	if err := src.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestReplayResamplesToPipelineRate(t *testing.T) {
	t.Parallel()

	// 48 kHz input is resampled down to the 16 kHz pipeline rate.
	path := writeTestWAV(t, 48000, 200)

	src, err := wavsource.New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer src.Close()

	var samples int
	for f := range src.Frames() {
		samples += len(f.Samples)
	}
	want := codevoxaudio.DefaultSampleRate * 200 / 1000
	if samples != want {
		t.Errorf("total samples = %d, want %d", samples, want)
	}
}

func TestReplayMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := wavsource.New("/does/not/exist.wav"); err == nil {
		t.Fatal("New() with missing file: expected error, got nil")
	}
}

func TestReplayCloseStopsEmission(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 16000, 2000)
	src, err := wavsource.New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	<-src.Frames()
	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	// The channel must close shortly after Close; drain whatever is buffered.
	for range src.Frames() {
	}
}
