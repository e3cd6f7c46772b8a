package audiometry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/internal/tone"
	"github.com/RMahshie/hearcheck/pkg/models"
)

// ErrSessionNotFound is returned for unknown or expired session ids
var ErrSessionNotFound = errors.New("session not found")

// OutputFactory opens the audio output a new session will own
type OutputFactory func(sessionID uuid.UUID) (tone.Output, error)

// ManagerConfig holds the settings every new session is created with
type ManagerConfig struct {
	Ladder       models.Ladder
	ToneDuration time.Duration
	AutoPlay     bool
	// SessionTTL is how long an idle session lives before it is cancelled
	SessionTTL time.Duration
}

// Manager tracks live sessions. Idle sessions expire and are cancelled,
// which stops any tone they left playing.
type Manager struct {
	cfg       ManagerConfig
	sessions  *cache.Cache
	newOutput OutputFactory
	results   ResultAppender
	clock     Clock
}

// NewManager creates a session registry
func NewManager(cfg ManagerConfig, newOutput OutputFactory, results ResultAppender, clock Clock) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	c := cache.New(cfg.SessionTTL, cfg.SessionTTL/2)
	c.OnEvicted(func(key string, v interface{}) {
		sess, ok := v.(*Session)
		if !ok {
			return
		}
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Str("sessionID", key).Msg("Failed to close evicted session")
		}
	})
	return &Manager{
		cfg:       cfg,
		sessions:  c,
		newOutput: newOutput,
		results:   results,
		clock:     clock,
	}
}

// Start opens an output and registers a new session. An unavailable audio
// backend does not prevent the session from starting; tone requests will
// report ErrAudioUnavailable until the session ends.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	id := uuid.New()

	var out tone.Output
	if m.newOutput != nil {
		o, err := m.newOutput(id)
		switch {
		case errors.Is(err, tone.ErrAudioUnavailable):
			log.Warn().Err(err).Str("sessionID", id.String()).Msg("Audio output unavailable for session")
		case err != nil:
			return nil, fmt.Errorf("failed to open audio output: %w", err)
		default:
			out = o
		}
	}

	synth := tone.NewSynthesizer(out, tone.Config{
		Duration:    m.cfg.ToneDuration,
		ReferenceDB: m.cfg.Ladder.MaxDB,
	})
	sess := NewSession(id, synth, m.results, m.clock, Options{
		Ladder:   m.cfg.Ladder,
		AutoPlay: m.cfg.AutoPlay,
	})
	m.sessions.Set(id.String(), sess, cache.DefaultExpiration)

	log.Info().Str("sessionID", id.String()).Int("minDB", m.cfg.Ladder.MinDB).Int("maxDB", m.cfg.Ladder.MaxDB).Msg("Session started")
	return sess, nil
}

// Get returns a live session and extends its lifetime
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	v, ok := m.sessions.Get(id.String())
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess := v.(*Session)
	m.sessions.Set(id.String(), sess, cache.DefaultExpiration)
	return sess, nil
}

// End cancels and forgets a session
func (m *Manager) End(id uuid.UUID) error {
	if _, ok := m.sessions.Get(id.String()); !ok {
		return ErrSessionNotFound
	}
	m.sessions.Delete(id.String())
	return nil
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Close cancels every live session
func (m *Manager) Close() {
	for key := range m.sessions.Items() {
		m.sessions.Delete(key)
	}
}
