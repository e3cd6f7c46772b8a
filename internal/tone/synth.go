// Package tone renders single-ear pure tones and drives an audio Output.
package tone

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/pkg/models"
)

const (
	// DefaultDuration is how long every tone plays
	DefaultDuration = time.Second
	// RampDuration is the linear fade applied at both ends of a tone
	RampDuration = 10 * time.Millisecond
)

// Config holds synthesizer settings
type Config struct {
	Duration    time.Duration
	ReferenceDB int // ladder maximum; plays at full scale
	Format      Format
}

// Amplitude converts a dB HL level to linear gain relative to referenceDB.
// A level at the reference plays at 1.0; each 20 dB below it divides by ten.
func Amplitude(intensityDB, referenceDB int) float64 {
	a := math.Pow(10, float64(intensityDB-referenceDB)/20)
	switch {
	case math.IsNaN(a) || a < 0:
		return 0
	case a > 1:
		return 1
	}
	return a
}

// Render returns interleaved float samples of a sine tone panned fully to
// spec.Ear. The opposite channel is silent.
func Render(spec models.ToneSpec, amplitude float64, format Format, d time.Duration) []float32 {
	frames := int(math.Round(d.Seconds() * float64(format.SampleRate)))
	ramp := int(math.Round(RampDuration.Seconds() * float64(format.SampleRate)))
	if ramp*2 > frames {
		ramp = frames / 2
	}

	ch := 0
	if spec.Ear == models.EarRight {
		ch = 1
	}

	out := make([]float32, frames*format.Channels)
	step := 2 * math.Pi * float64(spec.FrequencyHz) / float64(format.SampleRate)
	for i := 0; i < frames; i++ {
		env := 1.0
		if i < ramp {
			env = float64(i) / float64(ramp)
		} else if i >= frames-ramp {
			env = float64(frames-1-i) / float64(ramp)
		}
		out[i*format.Channels+ch] = float32(amplitude * env * math.Sin(step*float64(i)))
	}
	return out
}

// EncodeS16LE converts float samples in [-1, 1] to signed 16-bit little-endian PCM
func EncodeS16LE(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(math.Round(v*32767))))
	}
	return buf
}

// Synthesizer plays tones on an owned Output
type Synthesizer struct {
	out Output
	cfg Config

	mu      sync.Mutex
	current *playing
}

type playing struct {
	spec    models.ToneSpec
	samples []float32
	started time.Time
	handle  *Handle
}

// NewSynthesizer wraps out. A nil out makes every Play fail with ErrAudioUnavailable.
func NewSynthesizer(out Output, cfg Config) *Synthesizer {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.Format.SampleRate == 0 {
		cfg.Format.SampleRate = DefaultFormat.SampleRate
	}
	// tones are always rendered as a stereo pair
	cfg.Format.Channels = 2
	return &Synthesizer{out: out, cfg: cfg}
}

// Play renders spec and starts it on the output. The returned handle stops
// itself after the configured duration; ctx only bounds the start.
func (s *Synthesizer) Play(ctx context.Context, spec models.ToneSpec) (*Handle, error) {
	if s.out == nil {
		return nil, ErrAudioUnavailable
	}

	amp := Amplitude(spec.IntensityDB, s.cfg.ReferenceDB)
	samples := Render(spec, amp, s.cfg.Format, s.cfg.Duration)

	voice, err := s.out.Play(ctx, EncodeS16LE(samples), s.cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to start tone: %w", err)
	}

	h := newHandle(voice)
	go h.expire(s.cfg.Duration)

	s.mu.Lock()
	s.current = &playing{spec: spec, samples: samples, started: time.Now(), handle: h}
	s.mu.Unlock()

	log.Debug().
		Str("ear", string(spec.Ear)).
		Int("frequency", spec.FrequencyHz).
		Int("intensity", spec.IntensityDB).
		Float64("amplitude", amp).
		Msg("Tone started")

	return h, nil
}

// Close releases the output
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()

	if cur != nil {
		if err := cur.handle.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop tone during close")
		}
	}
	if s.out == nil {
		return nil
	}
	return s.out.Close()
}

// LatestFrame returns up to size sample frames at the current playback
// position. It only reads the rendered buffer and never touches the output.
func (s *Synthesizer) LatestFrame(size int) models.Frame {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	f := models.Frame{SampleRate: s.cfg.Format.SampleRate, Left: []float32{}, Right: []float32{}}
	if cur == nil || cur.handle.finished() || size <= 0 {
		return f
	}

	ch := s.cfg.Format.Channels
	total := len(cur.samples) / ch
	elapsed := time.Since(cur.started)
	pos := int(elapsed.Seconds() * float64(s.cfg.Format.SampleRate))
	if pos >= total {
		return f
	}
	end := pos + size
	if end > total {
		end = total
	}

	f.Playing = true
	f.Ear = cur.spec.Ear
	f.FrequencyHz = cur.spec.FrequencyHz
	f.OffsetMs = elapsed.Milliseconds()
	f.Left = make([]float32, 0, end-pos)
	f.Right = make([]float32, 0, end-pos)
	for i := pos; i < end; i++ {
		f.Left = append(f.Left, cur.samples[i*ch])
		f.Right = append(f.Right, cur.samples[i*ch+1])
	}
	return f
}

// Handle is a running tone. It is stopped automatically after the tone
// duration, or earlier by Stop.
type Handle struct {
	voice Voice
	once  sync.Once
	done  chan struct{}
	err   error
}

func newHandle(v Voice) *Handle {
	return &Handle{voice: v, done: make(chan struct{})}
}

// Done is closed once the tone has stopped and its resources are released
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stop halts the tone and waits for teardown
func (h *Handle) Stop() error {
	h.once.Do(func() {
		h.err = h.voice.Stop()
		close(h.done)
	})
	return h.err
}

func (h *Handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) expire(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-h.voice.Done():
	case <-h.done:
		return
	}
	if err := h.Stop(); err != nil {
		log.Warn().Err(err).Msg("Tone teardown failed")
	}
}
