package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-turns/core/audio"
)

// playbackClient feeds queued PCM to the device callback. Each queued
// block gets a drain channel that closes once the device has consumed it.
type playbackClient struct {
	device   *malgo.Device
	encoding audio.EncodingInfo

	mu      sync.Mutex
	queued  []byte
	waiters []drainWaiter
}

type drainWaiter struct {
	// remaining counts queued bytes ahead of and including the block.
	remaining int
	drained   chan struct{}
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	config := deviceConfig(malgo.Playback, encoding)
	config.PeriodSizeInFrames = uint32(encoding.SampleRate / 10)
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: c.fill(bytesPerFrame),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = device
	c.encoding = encoding
	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()
	if device == nil {
		return errDeviceNotInitialized
	}
	return device.Start()
}

// enqueue appends pcm and returns a channel closed once it has been played
// or dropped by ClearBuffer.
func (c *playbackClient) enqueue(pcm []byte) (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil, errDeviceNotInitialized
	}
	if !c.device.IsStarted() {
		return nil, fmt.Errorf("playback device not started")
	}

	c.queued = append(c.queued, pcm...)
	waiter := drainWaiter{remaining: len(c.queued), drained: make(chan struct{})}
	c.waiters = append(c.waiters, waiter)
	return waiter.drained, nil
}

func (c *playbackClient) ClearBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = nil
	for _, waiter := range c.waiters {
		close(waiter.drained)
	}
	c.waiters = nil
}

func (c *playbackClient) Uninit() error {
	c.ClearBuffer()

	c.mu.Lock()
	device := c.device
	c.device = nil
	c.mu.Unlock()

	if device == nil {
		return errDeviceNotInitialized
	}
	device.Uninit()
	return nil
}

func (c *playbackClient) fill(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		want := int(frameCount) * bytesPerFrame

		c.mu.Lock()
		defer c.mu.Unlock()

		n := copy(pOutput[:min(want, len(pOutput))], c.queued)
		c.queued = c.queued[n:]
		if len(c.queued) == 0 {
			c.queued = nil
		}

		// Padding counts as played so the last block drains once the
		// queue runs dry.
		kept := c.waiters[:0]
		for _, waiter := range c.waiters {
			waiter.remaining -= want
			if waiter.remaining <= 0 {
				close(waiter.drained)
				continue
			}
			kept = append(kept, waiter)
		}
		c.waiters = kept
	}
}
