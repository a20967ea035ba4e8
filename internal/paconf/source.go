package paconf

import (
	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/simulator"
	"github.com/tracegas/pagraph/internal/sources"
)

// BuildSimulator translates a decoded simulated_source section into a
// simulator.Config. Unset fields default to frame_size 4096, sample_rate
// 48000, a unit correlation, and amplitude modulation.
func (c *SimulatedSourceConfig) BuildSimulator() (*simulator.Simulator, error) {
	if c == nil {
		return nil, errors.Newf("no simulated_source section configured").
			Component("paconf").Category(errors.CategoryConfiguration).Build()
	}

	sampleRate := c.SampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}
	frameSize := c.FrameSize
	if frameSize == 0 {
		frameSize = 4096
	}
	correlation := c.Correlation
	if correlation == 0 {
		correlation = 1.0
	}

	sourceType := simulator.SourceUniversal
	if c.SourceType == "mock" {
		sourceType = simulator.SourceMock
	}

	mode := simulator.ModulationAmplitude
	if c.ModulationMode == "pulsed" {
		mode = simulator.ModulationPulsed
	}

	return simulator.New(simulator.Config{
		SourceType:             sourceType,
		SampleRate:             sampleRate,
		FrameSize:              frameSize,
		Seed:                   c.Seed,
		Correlation:            correlation,
		ResonanceHz:            c.ResonanceFrequency,
		SignalAmplitude:        c.SignalAmplitude,
		LaserModulationDepth:   c.LaserModulationDepth,
		PhaseOppositionDegrees: c.PhaseOppositionDegrees,
		TemperatureDriftFactor: c.TemperatureDriftFactor,
		GasFlowNoiseFactor:     c.GasFlowNoiseFactor,
		SNRFactorDB:            c.SNRFactor,
		ModulationMode:         mode,
		PulseWidthSeconds:      c.PulseWidthSeconds,
		PulseFrequencyHz:       c.PulseFrequencyHz,
	})
}

// BuildDevice translates a decoded device section into a
// sources.DeviceConfig and opens it.
func (c *DeviceConfig) BuildDevice() (*sources.DeviceSource, error) {
	if c == nil {
		return nil, errors.Newf("no device section configured").
			Component("paconf").Category(errors.CategoryConfiguration).Build()
	}
	return sources.OpenDevice(sources.DeviceConfig{
		DeviceName:  c.DeviceName,
		SampleRate:  c.SampleRate,
		NumChannels: c.NumChannels,
		FrameSize:   c.FrameSize,
		QueueDepth:  c.QueueDepth,
	})
}
