package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// malgoBackend is the fallback capture backend, used when PortAudio cannot
// open a device (e.g. no ALSA/PulseAudio host API wired up for it). It opens
// a capture-only S16 device and converts samples to float32 on ingest.
type malgoBackend struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func newMalgoBackend() *malgoBackend {
	return &malgoBackend{}
}

func (b *malgoBackend) Name() string { return "malgo" }

func (b *malgoBackend) Open(ctx context.Context, onFrame func([]float32)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo: init context: %w", err)
	}
	b.ctx = mctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(_ []byte, pInput []byte, frameCount uint32) {
		samples := make([]float32, frameCount)
		for i := uint32(0); i < frameCount; i++ {
			lo := int(pInput[i*2])
			hi := int(int8(pInput[i*2+1]))
			v := int16(lo | hi<<8)
			samples[i] = float32(v) / 32768.0
		}
		onFrame(samples)
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		mctx.Uninit()
		return fmt.Errorf("malgo: init device: %w", err)
	}
	b.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return fmt.Errorf("malgo: start device: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = b.Close()
	}()

	return nil
}

func (b *malgoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		b.device.Uninit()
		b.device = nil
	}
	if b.ctx != nil {
		b.ctx.Uninit()
		b.ctx = nil
	}
	return nil
}
