package simulator

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tracegas/pagraph/internal/frame"
)

func universalConfig() Config {
	return Config{
		SourceType:             SourceUniversal,
		SampleRate:             48000,
		FrameSize:              1024,
		Seed:                   42,
		ResonanceHz:            2000,
		SignalAmplitude:        1.0,
		LaserModulationDepth:   0.5,
		PhaseOppositionDegrees: 180,
		TemperatureDriftFactor: 0.01,
		GasFlowNoiseFactor:     0.2,
		SNRFactorDB:            20,
	}
}

func TestNewRejectsNonPositiveSampleRate(t *testing.T) {
	t.Parallel()
	cfg := universalConfig()
	cfg.SampleRate = 0
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewRejectsResonanceOutOfRange(t *testing.T) {
	t.Parallel()
	cfg := universalConfig()
	cfg.ResonanceHz = 30000
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestIdenticalSeedsProduceByteIdenticalFrames(t *testing.T) {
	t.Parallel()
	s1, err := New(universalConfig())
	require.NoError(t, err)
	s2, err := New(universalConfig())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f1 := s1.NextFrame()
		f2 := s2.NextFrame()
		require.Equal(t, f1.Dual.ChannelA, f2.Dual.ChannelA)
		require.Equal(t, f1.Dual.ChannelB, f2.Dual.ChannelB)
		require.Equal(t, f1.FrameNumber(), f2.FrameNumber())
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	t.Parallel()
	cfgA := universalConfig()
	cfgB := universalConfig()
	cfgB.Seed = 43

	sA, err := New(cfgA)
	require.NoError(t, err)
	sB, err := New(cfgB)
	require.NoError(t, err)

	fA := sA.NextFrame()
	fB := sB.NextFrame()
	assert.NotEqual(t, fA.Dual.ChannelA, fB.Dual.ChannelA)
}

func TestMockSourceProducesPlausibleFrames(t *testing.T) {
	t.Parallel()
	cfg := Config{
		SourceType:      SourceMock,
		SampleRate:      48000,
		FrameSize:       256,
		Seed:            1,
		ResonanceHz:     1000,
		SignalAmplitude: 0.5,
	}
	s, err := New(cfg)
	require.NoError(t, err)

	f := s.NextFrame()
	assert.Equal(t, 256, f.Len())
	assert.EqualValues(t, 0, f.FrameNumber())
}

func TestFrameNumbersAreMonotonic(t *testing.T) {
	t.Parallel()
	s, err := New(universalConfig())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		f := s.NextFrame()
		assert.EqualValues(t, i, f.FrameNumber())
	}
}

func differential(f frame.AudioFrame) []float64 {
	out := make([]float64, f.Len())
	for i := range out {
		out[i] = float64(f.Dual.ChannelA[i] - f.Dual.ChannelB[i])
	}
	return out
}

func TestDifferentialPeaksAtResonance(t *testing.T) {
	t.Parallel()
	cfg := universalConfig()
	cfg.FrameSize = 4096
	cfg.GasFlowNoiseFactor = 1.0
	cfg.TemperatureDriftFactor = 0
	s, err := New(cfg)
	require.NoError(t, err)

	// One full second so the FFT bin spacing is 1 Hz.
	diff := make([]float64, 0, cfg.SampleRate)
	for len(diff) < cfg.SampleRate {
		diff = append(diff, differential(s.NextFrame())...)
	}
	diff = diff[:cfg.SampleRate]

	fft := fourier.NewFFT(len(diff))
	coeffs := fft.Coefficients(nil, diff)

	bestBin, bestMag := 0, 0.0
	for i := 1; i < len(coeffs); i++ {
		mag := cmplx.Abs(coeffs[i])
		if mag > bestMag {
			bestMag = mag
			bestBin = i
		}
	}
	peakHz := fft.Freq(bestBin) * float64(cfg.SampleRate)
	assert.InDelta(t, cfg.ResonanceHz, peakHz, 5)
}

func TestDifferentialSNRMatchesTarget(t *testing.T) {
	t.Parallel()
	cfg := universalConfig()
	cfg.FrameSize = 4096
	cfg.GasFlowNoiseFactor = 1.0
	cfg.TemperatureDriftFactor = 0
	cfg.SNRFactorDB = 20
	s, err := New(cfg)
	require.NoError(t, err)

	diff := make([]float64, 0, cfg.SampleRate)
	for len(diff) < cfg.SampleRate {
		diff = append(diff, differential(s.NextFrame())...)
	}
	diff = diff[:cfg.SampleRate]

	fft := fourier.NewFFT(len(diff))
	coeffs := fft.Coefficients(nil, diff)

	// The Helmholtz response confines the signal to a narrow band around
	// the resonance; everything outside that window is the noise floor.
	var inBand, outBand float64
	window := 100.0
	for i := 1; i < len(coeffs); i++ {
		hz := fft.Freq(i) * float64(cfg.SampleRate)
		e := cmplx.Abs(coeffs[i])
		e *= e
		if math.Abs(hz-cfg.ResonanceHz) <= window {
			inBand += e
		} else {
			outBand += e
		}
	}
	require.Greater(t, outBand, 0.0)
	snrDB := 10 * math.Log10(inBand/outBand)
	assert.InDelta(t, cfg.SNRFactorDB, snrDB, 3)
}
