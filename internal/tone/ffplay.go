package tone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

// FFplayOutput plays each tone through an ffplay subprocess reading raw
// PCM from stdin.
type FFplayOutput struct {
	path string

	mu     sync.Mutex
	closed bool
}

// NewFFplayOutput resolves the ffplay binary. A missing binary yields ErrAudioUnavailable.
func NewFFplayOutput(command string) (*FFplayOutput, error) {
	if command == "" {
		command = "ffplay"
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrAudioUnavailable, command, err)
	}
	return &FFplayOutput{path: path}, nil
}

func ffplayArgs(format Format) []string {
	layout := "stereo"
	if format.Channels == 1 {
		layout = "mono"
	}
	return []string{
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ch_layout", layout,
		"-i", "pipe:0",
	}
}

// Play starts one ffplay process for pcm
func (o *FFplayOutput) Play(ctx context.Context, pcm []byte, format Format) (Voice, error) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: output closed", ErrAudioUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, o.path, ffplayArgs(format)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		_ = stdin.Close()
		return nil, fmt.Errorf("%w: failed to start ffplay: %v", ErrAudioUnavailable, err)
	}

	v := &ffplayVoice{cmd: cmd, cancel: cancel, stderr: &stderr, done: make(chan struct{})}

	go func() {
		_, werr := io.Copy(stdin, bytes.NewReader(pcm))
		if cerr := stdin.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
			log.Debug().Err(werr).Msg("ffplay stdin write ended early")
		}
	}()

	go func() {
		v.waitErr = cmd.Wait()
		close(v.done)
	}()

	return v, nil
}

// Close marks the output closed; running voices are owned by their handles
func (o *FFplayOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

type ffplayVoice struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stderr  *bytes.Buffer
	done    chan struct{}
	waitErr error
}

func (v *ffplayVoice) Done() <-chan struct{} {
	return v.done
}

// Stop kills the process and waits for it to be reaped
func (v *ffplayVoice) Stop() error {
	v.cancel()
	<-v.done
	if v.waitErr != nil && v.stderr.Len() > 0 {
		log.Debug().Str("stderr", v.stderr.String()).Msg("ffplay exited")
	}
	return nil
}
