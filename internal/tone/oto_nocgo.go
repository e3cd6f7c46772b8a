//go:build !cgo && linux

package tone

import (
	"context"
	"fmt"
)

// OtoOutput is unavailable without cgo on Linux (ALSA bindings).
type OtoOutput struct{}

// NewOtoOutput always fails in this build
func NewOtoOutput(format Format) (*OtoOutput, error) {
	return nil, fmt.Errorf("%w: built without cgo", ErrAudioUnavailable)
}

func (o *OtoOutput) Play(ctx context.Context, pcm []byte, format Format) (Voice, error) {
	return nil, ErrAudioUnavailable
}

func (o *OtoOutput) Close() error {
	return nil
}
