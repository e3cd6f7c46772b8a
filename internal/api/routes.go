package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/RMahshie/hearcheck/internal/api/handlers"
	"github.com/RMahshie/hearcheck/internal/audiometry"
	"github.com/RMahshie/hearcheck/internal/repository"
	"github.com/RMahshie/hearcheck/internal/tone"
)

// RegisterRoutes sets up all API routes. hub is nil unless tones are
// streamed to the browser.
func RegisterRoutes(router chi.Router, api huma.API, sessions *audiometry.Manager, results repository.ResultRepository, hub *tone.WebSocketHub, allowedOrigins []string) {
	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessions)
	resultsHandler := handlers.NewResultsHandler(results)

	// Register session routes
	huma.Register(api, huma.Operation{
		OperationID:   "startSession",
		Method:        http.MethodPost,
		Path:          "/api/sessions",
		Summary:       "Start a hearing test",
		Description:   "Creates a new session positioned at the left ear, 250 Hz, quietest level",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, sessionHandler.StartSession)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}",
		Summary:     "Get session state",
		Description: "Returns the current ear, frequency, level, progress and thresholds",
		Tags:        []string{"Sessions"},
	}, sessionHandler.GetSession)

	huma.Register(api, huma.Operation{
		OperationID: "requestTone",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/tone",
		Summary:     "Play the current tone",
		Description: "Plays the current presentation. Rejected while a tone is still playing.",
		Tags:        []string{"Sessions"},
	}, sessionHandler.RequestTone)

	huma.Register(api, huma.Operation{
		OperationID: "markHeard",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/heard",
		Summary:     "Report the tone as heard",
		Description: "Records the current level as the threshold and moves to the next frequency or ear",
		Tags:        []string{"Sessions"},
	}, sessionHandler.MarkHeard)

	huma.Register(api, huma.Operation{
		OperationID: "markNotHeard",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/not-heard",
		Summary:     "Report the tone as not heard",
		Description: "Raises the level one step, or records no response at the top of the ladder",
		Tags:        []string{"Sessions"},
	}, sessionHandler.MarkNotHeard)

	huma.Register(api, huma.Operation{
		OperationID: "getWaveform",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/waveform",
		Summary:     "Get waveform samples",
		Description: "Returns the latest window of the tone being played",
		Tags:        []string{"Sessions"},
	}, sessionHandler.GetWaveform)

	huma.Register(api, huma.Operation{
		OperationID: "getSummary",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/summary",
		Summary:     "Get test summary",
		Description: "Returns scores, conditions, advice and the audiogram of a finished test",
		Tags:        []string{"Sessions"},
	}, sessionHandler.GetSummary)

	huma.Register(api, huma.Operation{
		OperationID: "saveResult",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/save",
		Summary:     "Retry saving a result",
		Description: "Persists a finished test whose automatic save failed",
		Tags:        []string{"Sessions"},
	}, sessionHandler.SaveResult)

	huma.Register(api, huma.Operation{
		OperationID: "endSession",
		Method:      http.MethodDelete,
		Path:        "/api/sessions/{id}",
		Summary:     "End a session",
		Description: "Cancels the session and stops any tone it is playing",
		Tags:        []string{"Sessions"},
	}, sessionHandler.EndSession)

	// Register result routes
	huma.Register(api, huma.Operation{
		OperationID: "listResults",
		Method:      http.MethodGet,
		Path:        "/api/results",
		Summary:     "List stored results",
		Description: "Returns every stored result in insertion order, most recent last",
		Tags:        []string{"Results"},
	}, resultsHandler.ListResults)

	huma.Register(api, huma.Operation{
		OperationID: "deleteResult",
		Method:      http.MethodDelete,
		Path:        "/api/results/{index}",
		Summary:     "Delete a stored result",
		Description: "Removes the result at the given position",
		Tags:        []string{"Results"},
	}, resultsHandler.DeleteResult)

	huma.Register(api, huma.Operation{
		OperationID: "clearResults",
		Method:      http.MethodDelete,
		Path:        "/api/results",
		Summary:     "Delete all stored results",
		Tags:        []string{"Results"},
	}, resultsHandler.ClearResults)

	if hub != nil {
		router.Method(http.MethodGet, "/api/sessions/{id}/audio", handlers.NewAudioHandler(sessions, hub, allowedOrigins))
	}
}
