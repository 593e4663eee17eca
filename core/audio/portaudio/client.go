// Package portaudio is the fallback audio backend for hosts where
// miniaudio misbehaves. It runs a single duplex stream in blocking mode.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/uncons/review-core/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	mu        sync.Mutex
	started   bool
	capturing bool
	stop      chan struct{}

	leftover []byte
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, float64(audio.DefaultSampleRate), bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open duplex stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.capturing {
		c.mu.Unlock()
		return nil
	}
	c.capturing = true
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.captureLoop(ctx, stop, onAudio)
	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return nil
	}
	c.capturing = false
	close(c.stop)
	return nil
}

// StartPlayback starts the duplex stream if it is not running yet.
func (c *Client) StartPlayback() error {
	return c.ensureStarted()
}

// StopPlayback drops buffered speech. The duplex stream itself keeps
// running, capture may still need it.
func (c *Client) StopPlayback() error {
	c.ClearBuffer()
	return nil
}

// SendAudio plays whole device buffers and holds the tail until the next
// call rounds it out.
func (c *Client) SendAudio(speech []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return fmt.Errorf("stream not started")
	}

	chunk := c.bufferSize * 2
	pending := append(c.leftover, speech...)
	for len(pending) >= chunk {
		if err := binary.Read(bytes.NewReader(pending[:chunk]), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to frame playback buffer: %w", err)
		}
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to stream: %w", err)
		}
		pending = pending[chunk:]
	}
	c.leftover = append([]byte(nil), pending...)
	return nil
}

func (c *Client) ClearBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leftover = nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.Default()
}

func (c *Client) Close() {
	_ = c.StopCapture()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		_ = c.stream.Stop()
		c.started = false
	}
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) ensureStarted() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	c.started = true
	return nil
}

func (c *Client) captureLoop(ctx context.Context, stop <-chan struct{}, onAudio func(audio []byte)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			// Overflows are routine when the consumer stalls briefly.
			continue
		}

		frame := bytes.Buffer{}
		if err := binary.Write(&frame, binary.LittleEndian, c.in); err != nil {
			continue
		}
		onAudio(frame.Bytes())
	}
}
