package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/uncons/review-core/core/audio"
)

type playbackClient struct {
	mu     sync.Mutex
	device *malgo.Device

	bufMu    sync.Mutex
	buffered []byte
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	channels := uint32(1)
	frameBytes := malgo.SampleSizeInBytes(format) * int(channels)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(audio.DefaultSampleRate)
	config.Playback.Format = format
	config.Playback.Channels = channels
	config.Alsa.NoMMap = 1
	// ~100ms periods, agent speech arrives in bursts.
	config.PeriodSizeInFrames = uint32(audio.DefaultSampleRate / 10)
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			c.fill(output, int(frameCount)*frameBytes)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	c.device = device
	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("playback device not initialized")
	}
	if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("playback device not initialized")
	}
	if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	c.ClearBuffer()
	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()

	if device == nil {
		return fmt.Errorf("playback device not initialized")
	}
	if !device.IsStarted() {
		return fmt.Errorf("playback device not started")
	}

	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.buffered = append(c.buffered, audio...)
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.buffered = nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	c.device.Uninit()
	c.device = nil
	return nil
}

// fill copies buffered speech into the device's output window. The window
// arrives zeroed, so a short buffer plays out followed by silence.
func (c *playbackClient) fill(output []byte, need int) {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()

	if len(c.buffered) == 0 {
		return
	}
	if len(c.buffered) <= need {
		copy(output, c.buffered)
		c.buffered = nil
		return
	}
	copy(output, c.buffered[:need])
	c.buffered = c.buffered[need:]
}
