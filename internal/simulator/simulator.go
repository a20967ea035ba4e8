// Package simulator implements the physics-grade dual-channel signal
// generator used as a deterministic source for tests and demo mode.
// Rather than reading from a device it synthesizes a Helmholtz
// resonance response to a modulated photoacoustic signal plus a
// differential microphone pair's noise floor.
package simulator

import (
	"math"
	"math/rand"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/filterbank"
	"github.com/tracegas/pagraph/internal/frame"
)

// SourceType selects between the trivial mock generator and the full
// physics model.
type SourceType int

const (
	SourceMock SourceType = iota
	SourceUniversal
)

// ModulationMode selects how the laser modulation is shaped in time.
type ModulationMode int

const (
	ModulationAmplitude ModulationMode = iota
	ModulationPulsed
)

const helmholtzQ = 50.0

// Config parameterizes one simulated source.
type Config struct {
	SourceType SourceType

	SampleRate int
	FrameSize  int
	Seed       uint64

	Correlation             float64 // mic-pair correlation, nominal 1.0
	ResonanceHz             float64
	SignalAmplitude         float64
	LaserModulationDepth    float64
	PhaseOppositionDegrees  float64 // ~175-185
	TemperatureDriftFactor  float64 // scales the thermal random walk step
	GasFlowNoiseFactor      float64 // scales pink noise amplitude
	SNRFactorDB             float64 // target SNR of the differential signal
	ModulationMode          ModulationMode
	PulseWidthSeconds       float64
	PulseFrequencyHz        float64
}

// Simulator generates successive DualChannel frames deterministically from
// its seed: two runs built with an identical Config produce byte-identical
// frame sequences.
type Simulator struct {
	cfg Config

	rng  *rand.Rand
	bank *filterbank.Filter

	sampleIndex uint64
	frameNumber uint64

	cWalk         float64 // drives C(t) saturation
	resonanceCur  float64 // thermally drifted resonance center
	pink          [6]float64
	noiseScale    float64
}

// New validates cfg and constructs a Simulator. For SourceMock, cfg's
// physics fields are ignored and a pure sine-plus-noise pair is produced.
func New(cfg Config) (*Simulator, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.Newf("simulator sample rate must be positive").
			Component("simulator").Category(errors.CategoryValidation).Build()
	}
	if cfg.FrameSize <= 0 {
		return nil, errors.Newf("simulator frame size must be positive").
			Component("simulator").Category(errors.CategoryValidation).Build()
	}
	if cfg.SourceType == SourceUniversal && (cfg.ResonanceHz <= 0 || cfg.ResonanceHz >= float64(cfg.SampleRate)/2) {
		return nil, errors.Newf("resonance frequency %.2f out of range (0, %.2f)", cfg.ResonanceHz, float64(cfg.SampleRate)/2).
			Component("simulator").Category(errors.CategoryValidation).Build()
	}
	if cfg.Correlation == 0 {
		cfg.Correlation = 1.0
	}

	s := &Simulator{
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(int64(cfg.Seed))),
		resonanceCur: cfg.ResonanceHz,
	}

	if cfg.SourceType == SourceUniversal {
		bank, err := s.buildBank(cfg.ResonanceHz)
		if err != nil {
			return nil, err
		}
		s.bank = bank
		s.noiseScale = s.calibrateNoiseScale()
	}

	return s, nil
}

func (s *Simulator) buildBank(centerHz float64) (*filterbank.Filter, error) {
	bw := centerHz / helmholtzQ
	return filterbank.New(filterbank.Spec{
		Response:    filterbank.BandPass,
		Order:       2,
		CenterHz:    centerHz,
		BandwidthHz: bw,
		SampleRate:  s.cfg.SampleRate,
	})
}

// calibrateNoiseScale runs a short independent pass (its own RNG stream, so
// it never perturbs the simulator's own deterministic sequence) to measure
// the raw signal and raw noise RMS, then derives the scale factor that
// makes the configured SNR hold on the differential channel. On the
// differential, the anti-phase mic pair sums the signal to
// (1 - corr*cos(theta)) of the raw amplitude while the correlated noise
// cancels to a 0.05 residue, so both gains enter the scale.
func (s *Simulator) calibrateNoiseScale() float64 {
	const calibrationSamples = 8192
	calRng := rand.New(rand.NewSource(int64(s.cfg.Seed) + 1))
	calBank, err := s.buildBank(s.cfg.ResonanceHz)
	if err != nil {
		return 1.0
	}

	var sigSumSq, noiseSumSq float64
	cWalk := 0.0
	var pink [6]float64
	t := 0.0
	dt := 1.0 / float64(s.cfg.SampleRate)

	for i := 0; i < calibrationSamples; i++ {
		sig := s.photoacousticSample(calRng, calBank, &cWalk, s.cfg.ResonanceHz, t)
		noise := pinkNoiseSample(calRng, &pink)
		sigSumSq += sig * sig
		noiseSumSq += noise * noise
		t += dt
	}

	sigRMS := math.Sqrt(sigSumSq / calibrationSamples)
	noiseRMS := math.Sqrt(noiseSumSq / calibrationSamples)
	if noiseRMS == 0 {
		return 1.0
	}

	thetaOpp := s.cfg.PhaseOppositionDegrees * math.Pi / 180
	diffSigRMS := sigRMS * math.Abs(1-s.cfg.Correlation*math.Cos(thetaOpp))
	diffNoiseRMS := noiseRMS * 0.05
	if diffSigRMS == 0 || diffNoiseRMS == 0 {
		return 1.0
	}

	targetRatio := math.Pow(10, s.cfg.SNRFactorDB/20)
	return diffSigRMS / (diffNoiseRMS * targetRatio)
}

// photoacousticSample computes one raw (pre-noise) signal sample: the
// modulated photoacoustic tone run through the Helmholtz bandpass.
func (s *Simulator) photoacousticSample(rng *rand.Rand, bank *filterbank.Filter, cWalk *float64, resonanceHz, t float64) float64 {
	*cWalk += rng.NormFloat64() * 0.01
	*cWalk = math.Tanh(*cWalk)
	c := 1.0 + 0.1*(*cWalk)

	raw := s.cfg.SignalAmplitude * c *
		math.Sin(math.Sin(2*math.Pi*resonanceHz*t)*s.cfg.LaserModulationDepth)

	if s.cfg.ModulationMode == ModulationPulsed && s.cfg.PulseFrequencyHz > 0 {
		period := 1.0 / s.cfg.PulseFrequencyHz
		phase := math.Mod(t, period)
		if phase >= s.cfg.PulseWidthSeconds {
			raw = 0
		}
	}

	out := make([]float32, 1)
	out[0] = float32(raw)
	bank.Apply(out)
	return float64(out[0])
}

// pinkNoiseSample advances a 6-stage Voss-McCartney pink noise filter one
// step and returns its output. The coefficients are fixed for
// reproducibility and must not be changed.
func pinkNoiseSample(rng *rand.Rand, s *[6]float64) float64 {
	w := rng.Float64()*2 - 1
	s[0] = 0.99886*s[0] + w*0.0555179
	s[1] = 0.99332*s[1] + w*0.0750759
	s[2] = 0.96900*s[2] + w*0.1538520
	s[3] = 0.86650*s[3] + w*0.3104856
	s[4] = 0.55000*s[4] + w*0.5329522
	s[5] = -0.7616*s[5] + w*0.0168700
	return s[0] + s[1] + s[2] + s[3] + s[4] + s[5] + w*0.5362
}

// NextFrame synthesizes the next DualChannel frame. Thermal drift of the
// resonance frequency is applied once per frame (it is specified as slow
// relative to the audio rate), so the Helmholtz bandpass is retuned at
// most once per frame rather than once per sample.
func (s *Simulator) NextFrame() frame.AudioFrame {
	if s.cfg.SourceType == SourceMock {
		return s.nextMockFrame()
	}
	return s.nextUniversalFrame()
}

func (s *Simulator) nextMockFrame() frame.AudioFrame {
	a := make([]float32, s.cfg.FrameSize)
	b := make([]float32, s.cfg.FrameSize)
	dt := 1.0 / float64(s.cfg.SampleRate)
	for i := range a {
		t := float64(s.sampleIndex+uint64(i)) * dt
		sig := s.cfg.SignalAmplitude * math.Sin(2*math.Pi*s.cfg.ResonanceHz*t)
		noise := (s.rng.Float64()*2 - 1) * 0.01
		a[i] = float32(sig + noise)
		b[i] = float32(-sig + noise)
	}
	s.sampleIndex += uint64(len(a))
	return s.emit(a, b)
}

func (s *Simulator) nextUniversalFrame() frame.AudioFrame {
	cfg := s.cfg
	dt := 1.0 / float64(cfg.SampleRate)
	thetaOpp := cfg.PhaseOppositionDegrees * math.Pi / 180

	// Thermal drift: bounded random walk on the resonance center with
	// exponential mean reversion toward the nominal frequency, applied
	// once at frame start and retuned into the bank.
	driftStep := s.rng.NormFloat64() * cfg.TemperatureDriftFactor
	s.resonanceCur = cfg.ResonanceHz + (s.resonanceCur-cfg.ResonanceHz)*0.9999 + driftStep
	maxDrift := cfg.ResonanceHz * 0.05
	if s.resonanceCur > cfg.ResonanceHz+maxDrift {
		s.resonanceCur = cfg.ResonanceHz + maxDrift
	}
	if s.resonanceCur < cfg.ResonanceHz-maxDrift {
		s.resonanceCur = cfg.ResonanceHz - maxDrift
	}
	if _, err := s.bank.Retune(filterbank.Spec{
		Response:    filterbank.BandPass,
		Order:       2,
		CenterHz:    s.resonanceCur,
		BandwidthHz: s.resonanceCur / helmholtzQ,
		SampleRate:  cfg.SampleRate,
	}); err != nil {
		// If retune fails (geometry briefly invalid at the drift extreme)
		// keep the previous coefficients for this frame.
		s.resonanceCur = cfg.ResonanceHz
	}

	mic1 := make([]float32, cfg.FrameSize)
	mic2 := make([]float32, cfg.FrameSize)

	for i := 0; i < cfg.FrameSize; i++ {
		t := float64(s.sampleIndex) * dt
		s.sampleIndex++

		sigBuf := []float32{0}
		raw := s.rawSignal(t)
		sigBuf[0] = float32(raw)
		s.bank.Apply(sigBuf)
		sig := float64(sigBuf[0])

		noise := cfg.GasFlowNoiseFactor * s.noiseScale * pinkNoiseSample(s.rng, &s.pink)

		// The second mic sits in phase opposition: at theta = 180deg its
		// signal term is -sig, so the downstream differential recovers
		// ~2x signal while the correlated noise residue shrinks to 5%.
		mic1[i] = float32(sig + noise)
		mic2[i] = float32(sig*cfg.Correlation*math.Cos(thetaOpp) + 0.95*noise)
	}

	return s.emit(mic1, mic2)
}

func (s *Simulator) rawSignal(t float64) float64 {
	cfg := s.cfg
	s.cWalk += s.rng.NormFloat64() * 0.01
	s.cWalk = math.Tanh(s.cWalk)
	c := 1.0 + 0.1*s.cWalk

	raw := cfg.SignalAmplitude * c *
		math.Sin(math.Sin(2*math.Pi*s.resonanceCur*t)*cfg.LaserModulationDepth)

	if cfg.ModulationMode == ModulationPulsed && cfg.PulseFrequencyHz > 0 {
		period := 1.0 / cfg.PulseFrequencyHz
		phase := math.Mod(t, period)
		if phase >= cfg.PulseWidthSeconds {
			raw = 0
		}
	}
	return raw
}

func (s *Simulator) emit(a, b []float32) frame.AudioFrame {
	fn := s.frameNumber
	s.frameNumber++
	tsMs := int64(float64(s.sampleIndex) / float64(s.cfg.SampleRate) * 1000)
	return frame.NewDual(a, b, s.cfg.SampleRate, fn, tsMs)
}
