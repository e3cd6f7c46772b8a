package tone

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/RMahshie/hearcheck/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutput records what it was asked to play
type fakeOutput struct {
	mu      sync.Mutex
	played  [][]byte
	voices  []*fakeVoice
	failErr error
	closed  bool
}

func (o *fakeOutput) Play(ctx context.Context, pcm []byte, format Format) (Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failErr != nil {
		return nil, o.failErr
	}
	o.played = append(o.played, pcm)
	v := &fakeVoice{done: make(chan struct{})}
	o.voices = append(o.voices, v)
	return v, nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

type fakeVoice struct {
	mu      sync.Mutex
	done    chan struct{}
	stops   int
	stopped bool
}

func (v *fakeVoice) Done() <-chan struct{} {
	return v.done
}

func (v *fakeVoice) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stops++
	if !v.stopped {
		v.stopped = true
		close(v.done)
	}
	return nil
}

func TestAmplitude(t *testing.T) {
	assert.Equal(t, 1.0, Amplitude(70, 70))
	assert.InDelta(t, 0.1, Amplitude(50, 70), 1e-9)
	assert.InDelta(t, 0.01, Amplitude(30, 70), 1e-9)
	assert.Equal(t, 1.0, Amplitude(90, 70), "clamped at full scale")
	assert.GreaterOrEqual(t, Amplitude(-500, 70), 0.0)
}

func TestRender_PansToOneEar(t *testing.T) {
	f := Format{SampleRate: 8000, Channels: 2}

	left := Render(models.ToneSpec{FrequencyHz: 1000, IntensityDB: 70, Ear: models.EarLeft}, 0.5, f, time.Second)
	require.Len(t, left, 8000*2)

	peakL, peakR := 0.0, 0.0
	for i := 0; i < len(left); i += 2 {
		peakL = math.Max(peakL, math.Abs(float64(left[i])))
		peakR = math.Max(peakR, math.Abs(float64(left[i+1])))
	}
	assert.InDelta(t, 0.5, peakL, 0.01)
	assert.Equal(t, 0.0, peakR)

	right := Render(models.ToneSpec{FrequencyHz: 1000, IntensityDB: 70, Ear: models.EarRight}, 0.5, f, time.Second)
	for i := 0; i < len(right); i += 2 {
		require.Equal(t, float32(0), right[i])
	}
}

func TestRender_Ramps(t *testing.T) {
	f := Format{SampleRate: 8000, Channels: 2}
	s := Render(models.ToneSpec{FrequencyHz: 250, Ear: models.EarLeft}, 1, f, time.Second)

	assert.Equal(t, float32(0), s[0])
	assert.InDelta(t, 0, s[len(s)-2], 1e-6)
}

func TestEncodeS16LE(t *testing.T) {
	b := EncodeS16LE([]float32{0, 1, -1, 2})
	require.Len(t, b, 8)
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(b[0:])))
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(b[2:])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(b[4:])))
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(b[6:])), "clipped")
}

func TestSynthesizer_PlayStopsAfterDuration(t *testing.T) {
	out := &fakeOutput{}
	s := NewSynthesizer(out, Config{Duration: 30 * time.Millisecond, ReferenceDB: 70})

	h, err := s.Play(context.Background(), models.ToneSpec{FrequencyHz: 1000, IntensityDB: 40, Ear: models.EarRight})
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("tone did not stop on its own")
	}
	require.Len(t, out.voices, 1)
	assert.True(t, out.voices[0].stopped)
	// 48 kHz stereo, 2 bytes per sample, 30 ms
	assert.Len(t, out.played[0], 1440*2*2)
}

func TestSynthesizer_EarlyStop(t *testing.T) {
	out := &fakeOutput{}
	s := NewSynthesizer(out, Config{Duration: 10 * time.Second, ReferenceDB: 70})

	h, err := s.Play(context.Background(), models.ToneSpec{FrequencyHz: 500, IntensityDB: 0, Ear: models.EarLeft})
	require.NoError(t, err)

	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop())

	select {
	case <-h.Done():
	default:
		t.Fatal("handle not done after Stop")
	}
	assert.Equal(t, 1, out.voices[0].stops)
}

func TestSynthesizer_Unavailable(t *testing.T) {
	s := NewSynthesizer(nil, Config{ReferenceDB: 70})
	_, err := s.Play(context.Background(), models.ToneSpec{FrequencyHz: 250, Ear: models.EarLeft})
	assert.ErrorIs(t, err, ErrAudioUnavailable)

	out := &fakeOutput{failErr: ErrAudioUnavailable}
	s = NewSynthesizer(out, Config{ReferenceDB: 70})
	_, err = s.Play(context.Background(), models.ToneSpec{FrequencyHz: 250, Ear: models.EarLeft})
	assert.True(t, errors.Is(err, ErrAudioUnavailable))
	assert.Empty(t, out.played)
	assert.False(t, s.LatestFrame(64).Playing)
}

func TestSynthesizer_LatestFrame(t *testing.T) {
	out := &fakeOutput{}
	s := NewSynthesizer(out, Config{Duration: 10 * time.Second, ReferenceDB: 70})

	idle := s.LatestFrame(128)
	assert.False(t, idle.Playing)
	assert.Empty(t, idle.Left)

	h, err := s.Play(context.Background(), models.ToneSpec{FrequencyHz: 1000, IntensityDB: 70, Ear: models.EarLeft})
	require.NoError(t, err)

	f := s.LatestFrame(128)
	assert.True(t, f.Playing)
	assert.Equal(t, models.EarLeft, f.Ear)
	assert.Len(t, f.Left, 128)
	for _, v := range f.Right {
		assert.Equal(t, float32(0), v)
	}

	require.NoError(t, h.Stop())
	assert.False(t, s.LatestFrame(128).Playing)
	assert.Len(t, out.played, 1, "reading frames never replays audio")
}

func TestSynthesizer_CloseStopsAndReleases(t *testing.T) {
	out := &fakeOutput{}
	s := NewSynthesizer(out, Config{Duration: 10 * time.Second, ReferenceDB: 70})

	h, err := s.Play(context.Background(), models.ToneSpec{FrequencyHz: 1000, IntensityDB: 70, Ear: models.EarLeft})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	<-h.Done()
	assert.True(t, out.closed)
}
