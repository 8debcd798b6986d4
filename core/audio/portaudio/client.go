package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-turns/core/audio"
)

// Client plays and records through the default PortAudio devices using
// blocking streams.
type Client struct {
	bufferSize int
	playback   audio.EncodingInfo

	output *portaudio.Stream
	input  *portaudio.Stream

	in  []int16
	out []int16

	writeMu sync.Mutex

	recordMu     sync.Mutex
	stopRecorder context.CancelFunc
	recorderDone chan struct{}
}

func NewClient(playback, capture audio.EncodingInfo, bufferSize int) (*Client, error) {
	if playback.Format != audio.EncodingLinear16 || capture.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("only linear16 audio is supported")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	c := &Client{
		bufferSize: bufferSize,
		playback:   playback,
		in:         make([]int16, bufferSize),
		out:        make([]int16, bufferSize),
	}

	var err error
	if c.output, err = portaudio.OpenDefaultStream(0, 1, float64(playback.SampleRate), bufferSize, c.out); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open playback stream: %w", err)
	}
	if err := c.output.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start playback stream: %w", err)
	}
	if c.input, err = portaudio.OpenDefaultStream(1, 0, float64(capture.SampleRate), bufferSize, c.in); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}

	return c, nil
}

// StartRecording reads from the input stream in the background until
// StopRecording is called or ctx is done.
func (c *Client) StartRecording(ctx context.Context, onAudio func(pcm []byte)) error {
	c.recordMu.Lock()
	defer c.recordMu.Unlock()
	if c.stopRecorder != nil {
		return nil
	}

	if err := c.input.Start(); err != nil {
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.stopRecorder = cancel
	c.recorderDone = done

	go func() {
		defer close(done)
		for ctx.Err() == nil {
			if err := c.input.Read(); err != nil {
				logger.Warn("failed to read from capture stream", "error", err)
				continue
			}

			frame := bytes.Buffer{}
			_ = binary.Write(&frame, binary.LittleEndian, c.in)
			onAudio(frame.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopRecording() error {
	c.recordMu.Lock()
	defer c.recordMu.Unlock()
	if c.stopRecorder == nil {
		return nil
	}

	c.stopRecorder()
	<-c.recorderDone
	c.stopRecorder = nil
	c.recorderDone = nil

	if err := c.input.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture stream: %w", err)
	}
	return nil
}

// Play writes pcm to the output stream in buffer sized blocks. A partial
// trailing block is padded with silence.
func (c *Client) Play(ctx context.Context, pcm []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	blockSize := c.bufferSize * 2

	for offset := 0; offset < len(pcm); offset += blockSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		block := pcm[offset:min(offset+blockSize, len(pcm))]
		if len(block) < blockSize {
			block = append(block[:len(block):len(block)], make([]byte, blockSize-len(block))...)
		}

		if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to decode audio block: %w", err)
		}
		if err := c.output.Write(); err != nil {
			return fmt.Errorf("failed to write to playback stream: %w", err)
		}
	}

	return nil
}

// ClearBuffer is a no-op, writes block until the device accepted them so
// nothing is ever queued on our side.
func (c *Client) ClearBuffer() {}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.playback
}

func (c *Client) Close() {
	_ = c.StopRecording()
	if c.input != nil {
		_ = c.input.Close()
	}
	if c.output != nil {
		_ = c.output.Stop()
		_ = c.output.Close()
	}
	_ = portaudio.Terminate()
}
