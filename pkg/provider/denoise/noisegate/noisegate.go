// Package noisegate implements the [denoise.Suppressor] interface with a
// spectral-free noise gate: the span is cut into short windows, the noise
// floor is estimated from the quietest windows, and windows near the floor
// are attenuated with a soft gain curve. This targets steady mechanical
// noise (fan hum, HVAC) between words without touching speech energy.
package noisegate

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/provider/denoise"
)

const (
	defaultWindowMs = 10

	// floorQuantile selects which fraction of the quietest windows defines
	// the noise floor estimate.
	floorQuantile = 0.1

	// gateRatio is the RMS-to-floor ratio below which a window is fully
	// attenuated; between gateRatio and openRatio the gain ramps linearly.
	gateRatio = 1.5
	openRatio = 3.0

	// residualGain keeps a trace of the original signal in gated windows so
	// the result does not sound unnaturally dead.
	residualGain = 0.1
)

// Option is a functional option for configuring a [Gate].
type Option func(*Gate)

// WithWindowMs sets the analysis window length in milliseconds. Default: 10.
func WithWindowMs(ms int) Option {
	return func(g *Gate) { g.windowMs = ms }
}

// Gate implements [denoise.Suppressor]. It is stateless across calls and
// safe for concurrent use.
type Gate struct {
	windowMs int
}

// Compile-time interface assertion.
var _ denoise.Suppressor = (*Gate)(nil)

// New returns a noise gate with the supplied options applied.
func New(opts ...Option) *Gate {
	g := &Gate{windowMs: defaultWindowMs}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Process implements [denoise.Suppressor]. The output always has the same
// sample count as the input.
func (g *Gate) Process(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, errors.New("noisegate: sample rate must be positive")
	}

	out := make([]float32, len(samples))
	copy(out, samples)

	windowLen := sampleRate * g.windowMs / 1000
	if windowLen <= 0 || len(samples) < windowLen*2 {
		// Too short to estimate a floor; pass through unchanged.
		return out, nil
	}

	// Per-window RMS.
	numWindows := len(samples) / windowLen
	energies := make([]float64, numWindows)
	for w := range numWindows {
		energies[w] = audio.RMS(samples[w*windowLen : (w+1)*windowLen])
	}

	floor := estimateFloor(energies)
	if floor <= 0 {
		return out, nil
	}

	for w := range numWindows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gain := windowGain(energies[w], floor)
		if gain >= 1 {
			continue
		}
		for i := w * windowLen; i < (w+1)*windowLen; i++ {
			out[i] *= float32(gain)
		}
	}
	return out, nil
}

// estimateFloor returns the mean RMS of the quietest floorQuantile fraction
// of windows.
func estimateFloor(energies []float64) float64 {
	sorted := make([]float64, len(energies))
	copy(sorted, energies)
	sort.Float64s(sorted)

	n := int(math.Ceil(float64(len(sorted)) * floorQuantile))
	if n < 1 {
		n = 1
	}
	var sum float64
	for _, e := range sorted[:n] {
		sum += e
	}
	return sum / float64(n)
}

// windowGain maps a window's RMS-to-floor ratio onto a gain in
// [residualGain, 1.0]: fully gated below gateRatio, untouched above
// openRatio, linear in between.
func windowGain(rms, floor float64) float64 {
	ratio := rms / floor
	switch {
	case ratio <= gateRatio:
		return residualGain
	case ratio >= openRatio:
		return 1.0
	default:
		t := (ratio - gateRatio) / (openRatio - gateRatio)
		return residualGain + t*(1-residualGain)
	}
}
