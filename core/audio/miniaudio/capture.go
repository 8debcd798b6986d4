package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-turns/core/audio"
)

// captureClient hands every captured period to the current onAudio
// callback. The device only runs while a recording is in progress.
type captureClient struct {
	mu      sync.Mutex
	device  *malgo.Device
	onAudio func(pcm []byte)
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	config := deviceConfig(malgo.Capture, encoding)
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = uint32(encoding.SampleRate / 50)
	config.Periods = 3

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: c.receive,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = device
	return nil
}

func (c *captureClient) receive(_, pInput []byte, frameCount uint32) {
	n := int(frameCount) * bytesPerFrame
	if n == 0 || len(pInput) < n {
		return
	}

	c.mu.Lock()
	onAudio := c.onAudio
	c.mu.Unlock()
	if onAudio == nil {
		return
	}
	onAudio(append([]byte(nil), pInput[:n]...))
}

func (c *captureClient) Start(onAudio func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotInitialized
	}
	if c.device.IsStarted() {
		return fmt.Errorf("already recording")
	}

	c.onAudio = onAudio
	if err := c.device.Start(); err != nil {
		c.onAudio = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	device := c.device
	c.onAudio = nil
	c.mu.Unlock()

	if device == nil {
		return errDeviceNotInitialized
	}
	if !device.IsStarted() {
		return nil
	}
	// Stop waits for a running data callback, which takes mu.
	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.onAudio = nil
	c.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	return nil
}
