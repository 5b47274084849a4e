package noisegate_test

import (
	"context"
	"math"
	"testing"

	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/provider/denoise/noisegate"
)

// mixedSignal returns one second of 16 kHz audio: constant low-level hum
// everywhere, with a loud 440 Hz burst in the middle third.
func mixedSignal() []float32 {
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = float32(0.005 * math.Sin(2*math.Pi*120*float64(i)/16000))
		if i >= 5000 && i < 11000 {
			samples[i] += float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/16000))
		}
	}
	return samples
}

func TestProcessPreservesSampleCount(t *testing.T) {
	t.Parallel()

	g := noisegate.New()
	for _, n := range []int{0, 1, 159, 160, 4800, 16000} {
		in := make([]float32, n)
		out, err := g.Process(context.Background(), in, 16000)
		if err != nil {
			t.Fatalf("Process(%d samples) error = %v", n, err)
		}
		if len(out) != n {
			t.Errorf("Process(%d samples) returned %d samples", n, len(out))
		}
	}
}

func TestProcessAttenuatesHumKeepsSpeech(t *testing.T) {
	t.Parallel()

	in := mixedSignal()
	out, err := noisegate.New().Process(context.Background(), in, 16000)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	humBefore := audio.RMS(in[:4000])
	humAfter := audio.RMS(out[:4000])
	if humAfter >= humBefore*0.5 {
		t.Errorf("hum RMS %f -> %f, want at least 50%% attenuation", humBefore, humAfter)
	}

	burstBefore := audio.RMS(in[6000:10000])
	burstAfter := audio.RMS(out[6000:10000])
	if burstAfter < burstBefore*0.95 {
		t.Errorf("burst RMS %f -> %f, speech energy must be preserved", burstBefore, burstAfter)
	}
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := mixedSignal()
	snapshot := make([]float32, len(in))
	copy(snapshot, in)

	if _, err := noisegate.New().Process(context.Background(), in, 16000); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for i := range in {
		if in[i] != snapshot[i] {
			t.Fatalf("input mutated at sample %d", i)
		}
	}
}

func TestProcessRespectsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := noisegate.New().Process(ctx, mixedSignal(), 16000); err == nil {
		t.Fatal("Process() with cancelled context: expected error, got nil")
	}
}

func TestProcessRejectsInvalidSampleRate(t *testing.T) {
	t.Parallel()

	if _, err := noisegate.New().Process(context.Background(), make([]float32, 100), 0); err == nil {
		t.Fatal("Process() with zero sample rate: expected error, got nil")
	}
}
