//go:build cgo || !linux

package tone

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoPollInterval is how often a voice checks whether its player drained
const otoPollInterval = 10 * time.Millisecond

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRefs = &deviceRefs{
		resume:  func() error { return otoCtx.Resume() },
		suspend: func() error { return otoCtx.Suspend() },
	}
)

// OtoOutput plays tones on the local sound device.
type OtoOutput struct {
	ctx       *oto.Context
	format    Format
	closeOnce sync.Once
	closeErr  error
}

// NewOtoOutput opens the sound device. The device context is process wide,
// so every OtoOutput shares the format of the first one created.
func NewOtoOutput(format Format) (*OtoOutput, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		})
		if otoErr == nil {
			<-ready
		}
	})
	if otoErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, otoErr)
	}
	if err := otoRefs.acquire(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	return &OtoOutput{ctx: otoCtx, format: format}, nil
}

// Play queues pcm on a new player
func (o *OtoOutput) Play(ctx context.Context, pcm []byte, format Format) (Voice, error) {
	if format != o.format {
		return nil, fmt.Errorf("%w: device opened at %d Hz/%d ch", ErrAudioUnavailable, o.format.SampleRate, o.format.Channels)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := o.ctx.NewPlayer(bytes.NewReader(pcm))
	p.Play()

	v := &otoVoice{player: p, done: make(chan struct{}), stop: make(chan struct{})}
	go v.watch()
	return v, nil
}

// Close releases this output's hold on the device. The device is suspended
// once every OtoOutput has been closed.
func (o *OtoOutput) Close() error {
	o.closeOnce.Do(func() {
		o.closeErr = otoRefs.release()
	})
	return o.closeErr
}

type otoVoice struct {
	player   *oto.Player
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func (v *otoVoice) watch() {
	defer close(v.done)
	ticker := time.NewTicker(otoPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			if !v.player.IsPlaying() {
				return
			}
		}
	}
}

func (v *otoVoice) Done() <-chan struct{} {
	return v.done
}

func (v *otoVoice) Stop() error {
	v.stopOnce.Do(func() { close(v.stop) })
	<-v.done
	v.player.Pause()
	return v.player.Close()
}
