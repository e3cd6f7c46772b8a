package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status   string    `json:"status" example:"healthy" doc:"Service health status"`
		Version  string    `json:"version" example:"1.0.0" doc:"API version"`
		Sessions int       `json:"sessions" doc:"Number of live test sessions"`
		Time     time.Time `json:"time" doc:"Current server time"`
	}
}

// SessionRequest addresses one test session
type SessionRequest struct {
	ID string `path:"id" format:"uuid" doc:"Session ID"`
}

// SessionResponse returns the current view of a session
type SessionResponse struct {
	Body SessionView
}

// WaveformRequest asks for the latest window of the playing tone
type WaveformRequest struct {
	ID   string `path:"id" format:"uuid" doc:"Session ID"`
	Size int    `query:"size" default:"512" minimum:"1" maximum:"4800" doc:"Number of sample frames to return"`
}

// WaveformResponse carries the sample window
type WaveformResponse struct {
	Body Frame
}

// SessionResultBody is the finalized outcome of a complete session
type SessionResultBody struct {
	Record     TestResultRecord `json:"record" doc:"Stored result record"`
	Summary    Summary          `json:"summary" doc:"Scores, conditions, advice and audiogram"`
	Thresholds ThresholdMap     `json:"thresholds" doc:"Full threshold map"`
	Saved      bool             `json:"saved" doc:"Whether the record reached the result store"`
}

// SessionResultResponse returns the finalized outcome
type SessionResultResponse struct {
	Body SessionResultBody
}

// ListResultsResponse returns every stored result, oldest first
type ListResultsResponse struct {
	Body struct {
		Results []TestResultRecord `json:"results" doc:"Stored results in insertion order"`
	}
}

// DeleteResultRequest addresses a stored result by position
type DeleteResultRequest struct {
	Index int `path:"index" minimum:"0" doc:"Position in the result list"`
}
