package sources

import (
	"context"
	"math"
	"runtime"

	"github.com/gen2brain/malgo"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
)

// DeviceSource captures from a live audio device via malgo (miniaudio
// bindings). Capture runs on malgo's own callback goroutine and hands
// completed frames to NextFrame over a bounded channel, so a slow consumer
// applies back-pressure to the channel rather than to the device callback.
type DeviceSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	sampleRate  int
	numChannels int
	frameSize   int

	frames      chan []float32
	frameNumber uint64
	sampleIndex uint64
}

// DeviceConfig selects the capture device and format.
type DeviceConfig struct {
	DeviceName  string // empty or "default" selects the system default
	SampleRate  int
	NumChannels int // 1 or 2
	FrameSize   int
	QueueDepth  int // bounded channel capacity between callback and driver, 1-4 per the concurrency model
}

func backendForPlatform() malgo.Backend {
	switch runtime.GOOS {
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendAlsa
	}
}

// OpenDevice initializes the malgo context and starts capture immediately.
func OpenDevice(cfg DeviceConfig) (*DeviceSource, error) {
	if cfg.NumChannels != 1 && cfg.NumChannels != 2 {
		return nil, errors.Newf("device source supports 1 or 2 channels, got %d", cfg.NumChannels).
			Component("sources").Category(errors.CategoryValidation).Build()
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 4
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backendForPlatform()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).Component("sources").Category(errors.CategoryResource).
			Context("operation", "init_malgo_context").Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.NumChannels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FrameSize)

	s := &DeviceSource{
		ctx:         malgoCtx,
		sampleRate:  cfg.SampleRate,
		numChannels: cfg.NumChannels,
		frameSize:   cfg.FrameSize,
		frames:      make(chan []float32, cfg.QueueDepth),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, captured []byte, frameCount uint32) {
			samples := bytesToFloat32(captured, int(frameCount)*cfg.NumChannels)
			select {
			case s.frames <- samples:
			default:
				// queue full: device underrun semantics, drop the oldest
				select {
				case <-s.frames:
				default:
				}
				s.frames <- samples
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, errors.New(err).Component("sources").Category(errors.CategoryResource).
			Context("operation", "init_device").Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return nil, errors.New(err).Component("sources").Category(errors.CategoryResource).
			Context("operation", "start_device").Build()
	}
	s.device = device

	return s, nil
}

func bytesToFloat32(b []byte, count int) []float32 {
	out := make([]float32, count)
	for i := 0; i < count; i++ {
		bits := uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func (s *DeviceSource) NextFrame(ctx context.Context) (frame.AudioFrame, error) {
	select {
	case samples, ok := <-s.frames:
		if !ok {
			return frame.AudioFrame{}, ErrExhausted
		}
		return s.buildFrame(samples), nil
	case <-ctx.Done():
		return frame.AudioFrame{}, ctx.Err()
	}
}

func (s *DeviceSource) buildFrame(interleaved []float32) frame.AudioFrame {
	fn := s.frameNumber
	s.frameNumber++
	framesRead := len(interleaved) / s.numChannels
	s.sampleIndex += uint64(framesRead)
	tsMs := int64(float64(s.sampleIndex) / float64(s.sampleRate) * 1000)

	if s.numChannels == 2 {
		a := make([]float32, framesRead)
		b := make([]float32, framesRead)
		for i := 0; i < framesRead; i++ {
			a[i] = interleaved[2*i]
			b[i] = interleaved[2*i+1]
		}
		return frame.NewDual(a, b, s.sampleRate, fn, tsMs)
	}
	return frame.NewSingle(append([]float32(nil), interleaved...), s.sampleRate, fn, tsMs)
}

func (s *DeviceSource) Close() error {
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
	}
	if s.ctx != nil {
		return s.ctx.Uninit()
	}
	return nil
}
