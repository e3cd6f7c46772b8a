package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/internal/audiometry"
	"github.com/RMahshie/hearcheck/internal/tone"
	"github.com/RMahshie/hearcheck/pkg/models"
)

// SessionHandler handles hearing test session requests
type SessionHandler struct {
	sessions *audiometry.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *audiometry.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// StartSession begins a new test at the first ear, frequency and level
func (h *SessionHandler) StartSession(ctx context.Context, _ *struct{}) (*models.SessionResponse, error) {
	sess, err := h.sessions.Start(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to start test session", err)
	}
	return &models.SessionResponse{Body: sess.View()}, nil
}

// GetSession returns the current view of a session
func (h *SessionHandler) GetSession(ctx context.Context, req *models.SessionRequest) (*models.SessionResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	return &models.SessionResponse{Body: sess.View()}, nil
}

// RequestTone plays the current presentation
func (h *SessionHandler) RequestTone(ctx context.Context, req *models.SessionRequest) (*models.SessionResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.RequestTone(ctx); err != nil {
		return nil, sessionError(err)
	}
	return &models.SessionResponse{Body: sess.View()}, nil
}

// MarkHeard records the current level as the threshold
func (h *SessionHandler) MarkHeard(ctx context.Context, req *models.SessionRequest) (*models.SessionResponse, error) {
	return h.respond(ctx, req, (*audiometry.Session).MarkHeard)
}

// MarkNotHeard raises the level, or records no response at the top of the ladder
func (h *SessionHandler) MarkNotHeard(ctx context.Context, req *models.SessionRequest) (*models.SessionResponse, error) {
	return h.respond(ctx, req, (*audiometry.Session).MarkNotHeard)
}

func (h *SessionHandler) respond(ctx context.Context, req *models.SessionRequest, cmd func(*audiometry.Session, context.Context) (models.SessionView, error)) (*models.SessionResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	view, err := cmd(sess, ctx)
	if err != nil {
		if view.Complete && !isSessionSentinel(err) {
			log.Error().Err(err).Str("sessionID", view.ID).Msg("Test complete but result not saved")
			return nil, huma.Error500InternalServerError("Test complete but the result could not be saved. Retry saving.", err)
		}
		return nil, sessionError(err)
	}
	return &models.SessionResponse{Body: view}, nil
}

// GetWaveform returns the latest window of the tone being played
func (h *SessionHandler) GetWaveform(ctx context.Context, req *models.WaveformRequest) (*models.WaveformResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	return &models.WaveformResponse{Body: sess.Frame(req.Size)}, nil
}

// GetSummary returns the scored outcome of a finished test
func (h *SessionHandler) GetSummary(ctx context.Context, req *models.SessionRequest) (*models.SessionResultResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	res, err := sess.Result()
	if err != nil {
		return nil, sessionError(err)
	}
	return &models.SessionResultResponse{Body: res}, nil
}

// SaveResult retries persisting a finished test whose save failed
func (h *SessionHandler) SaveResult(ctx context.Context, req *models.SessionRequest) (*models.SessionResultResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.Save(ctx); err != nil {
		if isSessionSentinel(err) {
			return nil, sessionError(err)
		}
		return nil, huma.Error500InternalServerError("Failed to save result", err)
	}
	res, err := sess.Result()
	if err != nil {
		return nil, sessionError(err)
	}
	return &models.SessionResultResponse{Body: res}, nil
}

// EndSession cancels a session and stops any tone it is playing
func (h *SessionHandler) EndSession(ctx context.Context, req *models.SessionRequest) (*struct{}, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid session ID", err)
	}
	if err := h.sessions.End(id); err != nil {
		return nil, sessionError(err)
	}
	return nil, nil
}

func (h *SessionHandler) lookup(rawID string) (*audiometry.Session, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid session ID", err)
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		return nil, sessionError(err)
	}
	return sess, nil
}

// sessionError maps session failures to HTTP errors
func sessionError(err error) error {
	switch {
	case errors.Is(err, audiometry.ErrSessionNotFound), errors.Is(err, audiometry.ErrSessionClosed):
		return huma.Error404NotFound("Session not found", err)
	case errors.Is(err, audiometry.ErrToneInFlight):
		return huma.Error409Conflict("A tone is already playing", err)
	case errors.Is(err, audiometry.ErrNotComplete):
		return huma.Error409Conflict("Test not yet complete", err)
	case errors.Is(err, tone.ErrAudioUnavailable):
		return huma.Error503ServiceUnavailable("Audio output unavailable. Check your headphones and try again.", err)
	default:
		log.Error().Err(err).Msg("Session command failed")
		return huma.Error500InternalServerError("Session command failed", err)
	}
}

func isSessionSentinel(err error) bool {
	return errors.Is(err, audiometry.ErrSessionNotFound) ||
		errors.Is(err, audiometry.ErrSessionClosed) ||
		errors.Is(err, audiometry.ErrToneInFlight) ||
		errors.Is(err, audiometry.ErrNotComplete) ||
		errors.Is(err, tone.ErrAudioUnavailable)
}
