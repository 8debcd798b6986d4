package miniaudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-turns/core/audio"
)

// Mono signed 16 bit, the only layout the clients open devices with.
const bytesPerFrame = 2

var errDeviceNotInitialized = errors.New("device not initialized")

// Client owns a miniaudio context with one playback and one capture device.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

// NewClient opens the default devices. Playback runs at the rate speech is
// synthesized at, capture at the rate the transcriber expects.
func NewClient(playback, capture audio.EncodingInfo) (*Client, error) {
	if playback.Format != audio.EncodingLinear16 || capture.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("only linear16 audio is supported")
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.playbackClient.Init(audioCtx, playback); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, capture); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartRecording(_ context.Context, onAudio func(pcm []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopRecording() error {
	return c.captureClient.Stop()
}

// Play queues pcm and blocks until the device has played it.
func (c *Client) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	drained, err := c.playbackClient.enqueue(pcm)
	if err != nil {
		return err
	}

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		c.playbackClient.ClearBuffer()
		return ctx.Err()
	}
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

func (c *Client) ClearBuffer() {
	c.playbackClient.ClearBuffer()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.playbackClient.encoding
}

func deviceConfig(kind malgo.DeviceType, encoding audio.EncodingInfo) malgo.DeviceConfig {
	config := malgo.DefaultDeviceConfig(kind)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Alsa.NoMMap = 1
	switch kind {
	case malgo.Playback:
		config.Playback.Format = malgo.FormatS16
		config.Playback.Channels = 1
	case malgo.Capture:
		config.Capture.Format = malgo.FormatS16
		config.Capture.Channels = 1
	}
	return config
}
