package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/wav"
	"github.com/jfreymuth/pulse"
)

// pcmClip is a decoded sound ready to stream: interleaved 16-bit samples.
type pcmClip struct {
	samples    []int16
	channels   int
	sampleRate int
}

// decodeWAVFile reads a PCM WAV file and converts it to 16-bit samples.
func decodeWAVFile(path string) (*pcmClip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sound: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("decode %s: not a PCM wav file", path)
	}

	channels := buf.Format.NumChannels
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("decode %s: unsupported channel count %d", path, channels)
	}

	samples := make([]int16, len(buf.Data))
	depth := int(d.BitDepth)
	for i, v := range buf.Data {
		samples[i] = toInt16(v, depth)
	}

	return &pcmClip{
		samples:    samples,
		channels:   channels,
		sampleRate: buf.Format.SampleRate,
	}, nil
}

// toInt16 rescales a decoded sample of the given bit depth to 16 bits.
func toInt16(v int, depth int) int16 {
	switch {
	case depth == 8:
		// 8-bit WAV is unsigned.
		return int16((v - 128) << 8)
	case depth > 16:
		return int16(v >> (depth - 16))
	default:
		return int16(v)
	}
}

// pulsePlayer streams WAV files to PulseAudio (or PipeWire's pulse server).
// Each Play runs its own playback stream in a goroutine.
type pulsePlayer struct {
	client *pulse.Client
	logger *slog.Logger

	// mu orders Play's admission (closed check + wg.Add) before Stop's
	// wg.Wait and client.Close.
	mu     sync.Mutex
	closed bool

	// stopped is read by the stream readers to end playback early.
	stopped atomic.Bool
	wg      sync.WaitGroup
}

func newPulsePlayer(logger *slog.Logger) (*pulsePlayer, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("nubmoan"))
	if err != nil {
		return nil, fmt.Errorf("connect to pulse server: %w", err)
	}
	return &pulsePlayer{client: c, logger: logger}, nil
}

// Play decodes path and starts streaming it. Decoding errors are returned;
// streaming errors are only logged.
func (p *pulsePlayer) Play(path string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errPlayerClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	started := false
	defer func() {
		if !started {
			p.wg.Done()
		}
	}()

	clip, err := decodeWAVFile(path)
	if err != nil {
		return err
	}

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if p.stopped.Load() || pos >= len(clip.samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, clip.samples[pos:])
		pos += n
		return n, nil
	})

	layout := pulse.PlaybackMono
	if clip.channels == 2 {
		layout = pulse.PlaybackStereo
	}

	stream, err := p.client.NewPlayback(reader,
		layout,
		pulse.PlaybackSampleRate(clip.sampleRate),
		pulse.PlaybackLatency(0.1),
	)
	if err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}

	started = true
	go func() {
		defer p.wg.Done()
		stream.Start()
		stream.Drain()
		if err := stream.Error(); err != nil && !errors.Is(err, pulse.EndOfData) {
			p.logger.Warn("pulse stream error", "file", path, "error", err)
		}
		stream.Stop()
		stream.Close()
	}()

	return nil
}

// Stop ends all running streams and closes the server connection.
func (p *pulsePlayer) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.stopped.Store(true)
	p.wg.Wait()
	if p.client != nil {
		p.client.Close()
	}
}
