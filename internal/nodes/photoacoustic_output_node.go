package nodes

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/pagraph"
)

// PolynomialCoefficients are the five coefficients (degree 1..5, lowest
// order first) of the calibration curve mapping peak amplitude to
// concentration in ppm: ppm = c1*x + c2*x^2 + ... + c5*x^5.
type PolynomialCoefficients [5]float64

func (p PolynomialCoefficients) evaluate(x float64) float64 {
	result := 0.0
	term := x
	for _, c := range p {
		result += c * term
		term *= x
	}
	return result
}

// PhotoacousticOutputNode computes the dominant frequency and amplitude of
// each Single frame via FFT, maps amplitude to a concentration estimate via
// a configured fifth-degree polynomial, and retains the most recent results
// in a bounded ring.
type PhotoacousticOutputNode struct {
	base
	poly PolynomialCoefficients

	mu    sync.Mutex
	fft   *fourier.FFT
	fftN  int
	ring  []frame.PeakResult
	ringI int
}

const peakRingCapacity = 64

// NewPhotoacousticOutput builds a PhotoacousticOutput node.
func NewPhotoacousticOutput(id pagraph.NodeId, poly PolynomialCoefficients) *PhotoacousticOutputNode {
	n := &PhotoacousticOutputNode{base: base{id: id, channels: frame.ChannelsSingle}, poly: poly}
	n.ring = make([]frame.PeakResult, 0, peakRingCapacity)
	return n
}

func (n *PhotoacousticOutputNode) OutputType() frame.Channels { return frame.ChannelsSingle }

func (n *PhotoacousticOutputNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != frame.ChannelsSingle {
		return frame.AudioFrame{}, wrongChannels("photoacoustic_output", n.id, in.Channels, frame.ChannelsSingle)
	}

	peak := n.computePeak(in.Single.Samples, in.Single.SampleRate, in.Single.TimestampMs)
	n.pushPeak(peak)
	n.record(start)
	return in, nil
}

func (n *PhotoacousticOutputNode) computePeak(samples []float32, sampleRate int, timestampMs int64) frame.PeakResult {
	n.mu.Lock()
	if n.fft == nil || n.fftN != len(samples) {
		n.fft = fourier.NewFFT(len(samples))
		n.fftN = len(samples)
	}
	fft := n.fft
	n.mu.Unlock()

	seq := make([]float64, len(samples))
	for i, s := range samples {
		seq[i] = float64(s)
	}
	coeffs := fft.Coefficients(nil, seq)

	bestBin := 1
	bestMag := 0.0
	for i := 1; i < len(coeffs)/2+1; i++ {
		mag := cmplxAbs(coeffs[i])
		if mag > bestMag {
			bestMag = mag
			bestBin = i
		}
	}

	freqHz := fft.Freq(bestBin) * float64(sampleRate)
	amplitude := bestMag * 2 / float64(len(samples))
	concentration := n.poly.evaluate(amplitude)

	return frame.PeakResult{
		FrequencyHz:      freqHz,
		Amplitude:        amplitude,
		ConcentrationPPM: &concentration,
		TimestampMs:      timestampMs,
	}
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func (n *PhotoacousticOutputNode) pushPeak(p frame.PeakResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.ring) < peakRingCapacity {
		n.ring = append(n.ring, p)
		return
	}
	n.ring[n.ringI] = p
	n.ringI = (n.ringI + 1) % peakRingCapacity
}

// RecentPeaks returns a copy of the currently retained PeakResults, ordered
// oldest to newest.
func (n *PhotoacousticOutputNode) RecentPeaks() []frame.PeakResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]frame.PeakResult, len(n.ring))
	for i := range out {
		out[i] = n.ring[(n.ringI+i)%len(n.ring)]
	}
	return out
}

// UpdateParameters applies a new calibration polynomial; it is always
// hot-reloadable.
func (n *PhotoacousticOutputNode) UpdateParameters(params map[string]any) (pagraph.ReloadResult, error) {
	if v, ok := params["polynomial"]; ok {
		poly, err := parsePolynomial(v)
		if err != nil {
			return pagraph.ReloadResult{}, errors.New(err).
				Component("photoacoustic_output").Category(errors.CategoryValidation).Build()
		}
		n.mu.Lock()
		n.poly = poly
		n.mu.Unlock()
	}
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}

func parsePolynomial(v any) (PolynomialCoefficients, error) {
	switch p := v.(type) {
	case PolynomialCoefficients:
		return p, nil
	case []any:
		if len(p) != 5 {
			return PolynomialCoefficients{}, fmt.Errorf("polynomial must have exactly 5 coefficients, got %d", len(p))
		}
		var out PolynomialCoefficients
		for i, e := range p {
			f, ok := toFloat64(e)
			if !ok {
				return PolynomialCoefficients{}, fmt.Errorf("polynomial[%d] must be numeric, got %T", i, e)
			}
			out[i] = f
		}
		return out, nil
	default:
		return PolynomialCoefficients{}, fmt.Errorf("polynomial must be a 5-element numeric sequence, got %T", v)
	}
}
