package audiometry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/hearcheck/internal/tone"
	"github.com/RMahshie/hearcheck/pkg/models"
)

// stubOutput is an in-memory tone.Output whose voices run until stopped
type stubOutput struct {
	mu      sync.Mutex
	plays   int
	live    int
	closed  int
	failErr error
}

func (o *stubOutput) Play(ctx context.Context, pcm []byte, format tone.Format) (tone.Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failErr != nil {
		return nil, o.failErr
	}
	o.plays++
	o.live++
	return &stubVoice{out: o, done: make(chan struct{})}, nil
}

func (o *stubOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
	return nil
}

func (o *stubOutput) counts() (plays, live, closed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.plays, o.live, o.closed
}

type stubVoice struct {
	out  *stubOutput
	once sync.Once
	done chan struct{}
}

func (v *stubVoice) Done() <-chan struct{} { return v.done }

func (v *stubVoice) Stop() error {
	v.once.Do(func() {
		v.out.mu.Lock()
		v.out.live--
		v.out.mu.Unlock()
		close(v.done)
	})
	return nil
}

// MockResultAppender implements ResultAppender for testing
type MockResultAppender struct {
	mock.Mock
}

func (m *MockResultAppender) Append(ctx context.Context, record models.TestResultRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

var fixedTime = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestSession(out tone.Output, results ResultAppender, opts Options) *Session {
	if opts.Ladder == (models.Ladder{}) {
		opts.Ladder = models.DefaultLadder()
	}
	synth := tone.NewSynthesizer(out, tone.Config{Duration: 10 * time.Second, ReferenceDB: opts.Ladder.MaxDB})
	return NewSession(uuid.New(), synth, results, ClockFunc(func() time.Time { return fixedTime }), opts)
}

func TestRequestTone_RejectsWhileInFlight(t *testing.T) {
	out := &stubOutput{}
	s := newTestSession(out, nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.RequestTone(ctx))
	before := s.View()

	err := s.RequestTone(ctx)

	assert.ErrorIs(t, err, ErrToneInFlight)
	assert.Equal(t, before, s.View())
	plays, live, _ := out.counts()
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, live)
}

func TestRequestTone_AudioUnavailableLeavesStateAlone(t *testing.T) {
	out := &stubOutput{failErr: tone.ErrAudioUnavailable}
	s := newTestSession(out, nil, Options{})
	before := s.View()

	err := s.RequestTone(context.Background())

	assert.ErrorIs(t, err, tone.ErrAudioUnavailable)
	assert.Equal(t, before, s.View())
	assert.False(t, s.Playing())

	// retry succeeds once audio is back
	out.mu.Lock()
	out.failErr = nil
	out.mu.Unlock()
	assert.NoError(t, s.RequestTone(context.Background()))
}

func TestMarkNotHeard_TearsDownToneFirst(t *testing.T) {
	out := &stubOutput{}
	s := newTestSession(out, nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.RequestTone(ctx))
	view, err := s.MarkNotHeard(ctx)
	require.NoError(t, err)

	_, live, _ := out.counts()
	assert.Equal(t, 0, live)
	assert.False(t, view.Playing)
	assert.Equal(t, 5, view.IntensityDB)

	// a new tone can start right away
	assert.NoError(t, s.RequestTone(ctx))
}

func TestAutoPlay(t *testing.T) {
	out := &stubOutput{}
	s := newTestSession(out, nil, Options{AutoPlay: true})
	ctx := context.Background()

	require.NoError(t, s.RequestTone(ctx))
	view, err := s.MarkNotHeard(ctx)
	require.NoError(t, err)
	assert.True(t, view.Playing)

	view, err = s.MarkHeard(ctx)
	require.NoError(t, err)
	assert.True(t, view.Playing)
	assert.Equal(t, 500, view.FrequencyHz)

	plays, live, _ := out.counts()
	assert.Equal(t, 3, plays)
	assert.Equal(t, 1, live)
}

func TestFullRun_PersistsRecord(t *testing.T) {
	out := &stubOutput{}
	results := &MockResultAppender{}
	results.On("Append", mock.Anything, mock.MatchedBy(func(r models.TestResultRecord) bool {
		return r.LeftAvg == 20 && r.RightAvg == 20 &&
			r.LeftCondition == "Normal hearing" &&
			r.Date == "2026-10-18T09:30:00Z" &&
			r.Version == models.RecordVersion
	})).Return(nil).Once()

	s := newTestSession(out, results, Options{})
	ctx := context.Background()

	_, err := s.Result()
	assert.ErrorIs(t, err, ErrNotComplete)

	for i := 0; i < TotalPairs(); i++ {
		// 0, 5, 10, 15 unheard; 20 heard
		for j := 0; j < 4; j++ {
			_, err := s.MarkNotHeard(ctx)
			require.NoError(t, err)
		}
		_, err := s.MarkHeard(ctx)
		require.NoError(t, err)
	}

	view := s.View()
	assert.True(t, view.Complete)
	assert.Equal(t, TotalPairs(), view.Tested)

	res, err := s.Result()
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Equal(t, 10, res.Summary.Left.Score)
	assert.False(t, res.Summary.Asymmetry)
	assert.Len(t, res.Thresholds[models.EarRight], len(models.Frequencies))

	_, _, closed := out.counts()
	assert.Equal(t, 1, closed, "output released at completion")

	// commands after completion are no-ops
	_, err = s.MarkHeard(ctx)
	assert.NoError(t, err)
	assert.NoError(t, s.RequestTone(ctx))
	plays, _, _ := out.counts()
	assert.Equal(t, 0, plays)

	results.AssertExpectations(t)
}

func TestFullRun_SaveRetry(t *testing.T) {
	results := &MockResultAppender{}
	results.On("Append", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
	results.On("Append", mock.Anything, mock.Anything).Return(nil).Once()

	s := newTestSession(&stubOutput{}, results, Options{Ladder: models.Ladder{MinDB: 70, MaxDB: 70}})
	ctx := context.Background()

	var err error
	for i := 0; i < TotalPairs(); i++ {
		_, err = s.MarkNotHeard(ctx)
	}
	require.Error(t, err)

	res, rerr := s.Result()
	require.NoError(t, rerr)
	assert.False(t, res.Saved)
	assert.Equal(t, 100.0, res.Record.LeftAvg)
	assert.Equal(t, "Profound hearing loss", res.Record.RightCondition)

	require.NoError(t, s.Save(ctx))
	res, _ = s.Result()
	assert.True(t, res.Saved)
	results.AssertExpectations(t)
}

func TestClose_CancelsInFlightTone(t *testing.T) {
	out := &stubOutput{}
	s := newTestSession(out, nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.RequestTone(ctx))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, live, closed := out.counts()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, closed)

	assert.ErrorIs(t, s.RequestTone(ctx), ErrSessionClosed)
	_, err := s.MarkHeard(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestBuildRecord(t *testing.T) {
	m := models.ThresholdMap{}
	for _, f := range models.Frequencies {
		m = m.With(models.EarLeft, f, models.HeardAt(50))
		m = m.With(models.EarRight, f, models.HeardAt(35))
	}

	r := BuildRecord("abc", fixedTime, m)

	assert.Equal(t, "abc", r.ID)
	assert.Equal(t, 50.0, r.LeftAvg)
	assert.Equal(t, 35.0, r.RightAvg)
	assert.Equal(t, "Moderate hearing loss", r.LeftCondition)
	assert.Equal(t, "Mild hearing loss", r.RightCondition)
}
