package handlers

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/internal/audiometry"
	"github.com/RMahshie/hearcheck/internal/tone"
)

const audioReadLimit = 512

// AudioHandler attaches browser listeners to a session's websocket output
type AudioHandler struct {
	sessions *audiometry.Manager
	hub      *tone.WebSocketHub
	upgrader websocket.Upgrader
	origins  map[string]bool
}

// NewAudioHandler creates an audio stream handler accepting the given origins
func NewAudioHandler(sessions *audiometry.Manager, hub *tone.WebSocketHub, allowedOrigins []string) *AudioHandler {
	h := &AudioHandler{
		sessions: sessions,
		hub:      hub,
		origins:  make(map[string]bool, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		h.origins[o] = true
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		WriteBufferSize: 16 << 10,
	}
	return h
}

// checkOrigin reports whether the WebSocket connection origin is allowed
func (h *AudioHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Same-origin requests omit the Origin header
	if origin == "" {
		return true
	}
	if h.origins[origin] {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		log.Warn().Str("origin", origin).Msg("Rejected audio websocket: invalid origin URL")
		return false
	}
	requestHost := r.Host
	if host, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = host
	}
	if u.Hostname() == requestHost {
		return true
	}

	log.Warn().Str("origin", origin).Msg("Rejected audio websocket")
	return false
}

// ServeHTTP upgrades the request and keeps the listener attached until the
// client goes away
func (h *AudioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	if _, err := h.sessions.Get(id); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("sessionID", id.String()).Msg("Audio websocket upgrade failed")
		return
	}
	if err := h.hub.Attach(id, conn); err != nil {
		log.Warn().Err(err).Str("sessionID", id.String()).Msg("Audio websocket attach failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "no audio output for session"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	log.Info().Str("sessionID", id.String()).Msg("Audio listener attached")

	conn.SetReadLimit(audioReadLimit)

	// client messages are ignored; reading drives ping and close handling
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Detach(id, conn)
	conn.Close()
	log.Info().Str("sessionID", id.String()).Msg("Audio listener detached")
}
