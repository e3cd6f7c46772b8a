package audiometry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/internal/scoring"
	"github.com/RMahshie/hearcheck/internal/tone"
	"github.com/RMahshie/hearcheck/pkg/models"
)

var (
	// ErrToneInFlight rejects a tone request while the previous tone still plays
	ErrToneInFlight = errors.New("a tone is already playing")
	// ErrNotComplete is returned when a result is requested before the last pair is recorded
	ErrNotComplete = errors.New("test not complete")
	// ErrSessionClosed is returned by commands on a cancelled session
	ErrSessionClosed = errors.New("session closed")
)

// Clock supplies record timestamps
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// ResultAppender persists finalized records
type ResultAppender interface {
	Append(ctx context.Context, record models.TestResultRecord) error
}

// Options tune a session
type Options struct {
	Ladder models.Ladder
	// AutoPlay re-issues the tone after every transition that stays in testing
	AutoPlay bool
}

// Result is the finalized outcome of a complete session
type Result = models.SessionResultBody

// Session runs one threshold search against an owned synthesizer. Commands
// are serialized; at most one tone plays at a time.
type Session struct {
	id       uuid.UUID
	synth    *tone.Synthesizer
	results  ResultAppender
	clock    Clock
	autoPlay bool

	mu     sync.Mutex
	state  State
	tone   *tone.Handle
	result *Result
	closed bool
}

// NewSession creates a session at the initial search position. The session
// owns synth and closes it when the test completes or is cancelled.
func NewSession(id uuid.UUID, synth *tone.Synthesizer, results ResultAppender, clock Clock, opts Options) *Session {
	if clock == nil {
		clock = SystemClock
	}
	return &Session{
		id:       id,
		synth:    synth,
		results:  results,
		clock:    clock,
		autoPlay: opts.AutoPlay,
		state:    NewState(opts.Ladder),
	}
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current search state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns the read-only projection used by presentation layers
func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() models.SessionView {
	v := models.SessionView{
		ID:         s.id.String(),
		Complete:   s.state.Complete(),
		Playing:    s.playingLocked(),
		Thresholds: s.state.Thresholds(),
		Total:      TotalPairs(),
	}
	v.Tested = v.Thresholds.Count()
	if spec, ok := s.state.Tone(); ok {
		v.Ear = spec.Ear
		v.FrequencyHz = spec.FrequencyHz
		v.IntensityDB = spec.IntensityDB
	}
	return v
}

func (s *Session) playingLocked() bool {
	if s.tone == nil {
		return false
	}
	select {
	case <-s.tone.Done():
		return false
	default:
		return true
	}
}

// Playing reports whether a tone is in flight
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playingLocked()
}

// Frame returns the latest window of the tone being played
func (s *Session) Frame(size int) models.Frame {
	return s.synth.LatestFrame(size)
}

// RequestTone plays the current presentation. It is a no-op once complete
// and is rejected with ErrToneInFlight while a tone is still playing.
func (s *Session) RequestTone(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestToneLocked(ctx)
}

func (s *Session) requestToneLocked(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	spec, ok := s.state.Tone()
	if !ok {
		return nil
	}
	if s.playingLocked() {
		return ErrToneInFlight
	}

	h, err := s.synth.Play(ctx, spec)
	if err != nil {
		log.Warn().Err(err).Str("sessionID", s.id.String()).Msg("Tone request failed")
		return err
	}
	s.tone = h

	log.Info().
		Str("sessionID", s.id.String()).
		Str("ear", string(spec.Ear)).
		Int("frequency", spec.FrequencyHz).
		Int("intensity", spec.IntensityDB).
		Msg("Tone requested")
	return nil
}

// MarkHeard records the current level as the threshold and advances
func (s *Session) MarkHeard(ctx context.Context) (models.SessionView, error) {
	return s.transition(ctx, State.MarkHeard)
}

// MarkNotHeard raises the level one step, or records NoResponse at the top of the ladder
func (s *Session) MarkNotHeard(ctx context.Context) (models.SessionView, error) {
	return s.transition(ctx, State.MarkNotHeard)
}

func (s *Session) transition(ctx context.Context, step func(State) State) (models.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.viewLocked(), ErrSessionClosed
	}
	if s.state.Complete() {
		return s.viewLocked(), nil
	}

	// the previous tone must be torn down before anything else can play
	s.stopToneLocked()
	s.state = step(s.state)

	if s.state.Complete() {
		err := s.finalizeLocked(ctx)
		return s.viewLocked(), err
	}

	if s.autoPlay {
		if err := s.requestToneLocked(ctx); err != nil {
			log.Warn().Err(err).Str("sessionID", s.id.String()).Msg("Auto-play failed; waiting for a manual request")
		}
	}
	return s.viewLocked(), nil
}

func (s *Session) stopToneLocked() {
	if s.tone == nil {
		return
	}
	if err := s.tone.Stop(); err != nil {
		log.Warn().Err(err).Str("sessionID", s.id.String()).Msg("Failed to stop tone")
	}
	s.tone = nil
}

func (s *Session) finalizeLocked(ctx context.Context) error {
	thresholds := s.state.Thresholds()
	res := &Result{
		Record:     BuildRecord(uuid.NewString(), s.clock.Now(), thresholds),
		Summary:    scoring.Summarize(thresholds),
		Thresholds: thresholds,
	}
	s.result = res

	if err := s.synth.Close(); err != nil {
		log.Warn().Err(err).Str("sessionID", s.id.String()).Msg("Failed to release audio output")
	}

	log.Info().
		Str("sessionID", s.id.String()).
		Float64("leftAvg", res.Record.LeftAvg).
		Float64("rightAvg", res.Record.RightAvg).
		Bool("asymmetry", res.Summary.Asymmetry).
		Msg("Test complete")

	return s.saveLocked(ctx)
}

func (s *Session) saveLocked(ctx context.Context) error {
	if s.results == nil || s.result.Saved {
		return nil
	}
	if err := s.results.Append(ctx, s.result.Record); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	s.result.Saved = true
	return nil
}

// Save retries persisting the result after a failed append
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return ErrNotComplete
	}
	return s.saveLocked(ctx)
}

// Result returns the finalized outcome once the search is complete
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, ErrNotComplete
	}
	return *s.result, nil
}

// Close cancels any tone in flight and releases the audio output. It is safe
// to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopToneLocked()
	if s.state.Complete() {
		// released at completion
		return nil
	}
	log.Info().Str("sessionID", s.id.String()).Msg("Session cancelled")
	return s.synth.Close()
}

// BuildRecord scores thresholds into a storable record
func BuildRecord(id string, at time.Time, thresholds models.ThresholdMap) models.TestResultRecord {
	left := scoring.Ear(thresholds, models.EarLeft)
	right := scoring.Ear(thresholds, models.EarRight)
	return models.TestResultRecord{
		Version:        models.RecordVersion,
		ID:             id,
		Date:           at.UTC().Format(time.RFC3339),
		LeftAvg:        left.Average,
		RightAvg:       right.Average,
		LeftCondition:  left.Condition,
		RightCondition: right.Condition,
		Thresholds:     thresholds,
	}
}
