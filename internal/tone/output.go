package tone

import (
	"context"
	"errors"
)

// ErrAudioUnavailable is returned when no audio backend can render a tone.
// Nothing has started playing when it is returned.
var ErrAudioUnavailable = errors.New("audio output unavailable")

// Output is an audio sink that plays interleaved PCM in Format.
// Implementations are owned by one session and released with Close.
type Output interface {
	// Play starts rendering pcm and returns once playback has begun.
	Play(ctx context.Context, pcm []byte, format Format) (Voice, error)
	Close() error
}

// Voice is one tone being rendered by an Output.
type Voice interface {
	// Done is closed once the output has finished with the buffer.
	Done() <-chan struct{}
	// Stop halts playback and blocks until the output's resources for
	// this voice are released. It is safe to call more than once.
	Stop() error
}

// Format describes the PCM layout handed to outputs
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 48 kHz stereo signed 16-bit little-endian
var DefaultFormat = Format{SampleRate: 48000, Channels: 2}

// BytesPerFrame is the size of one interleaved sample frame
func (f Format) BytesPerFrame() int {
	return f.Channels * 2
}
