package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/internal/repository"
	"github.com/RMahshie/hearcheck/pkg/models"
)

// ResultsHandler handles stored result requests
type ResultsHandler struct {
	repo repository.ResultRepository
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(repo repository.ResultRepository) *ResultsHandler {
	return &ResultsHandler{repo: repo}
}

// ListResults returns every stored result, oldest first
func (h *ResultsHandler) ListResults(ctx context.Context, _ *struct{}) (*models.ListResultsResponse, error) {
	records, err := h.repo.ListAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load results", err)
	}
	resp := &models.ListResultsResponse{}
	resp.Body.Results = records
	return resp, nil
}

// DeleteResult removes the result at the given position
func (h *ResultsHandler) DeleteResult(ctx context.Context, req *models.DeleteResultRequest) (*struct{}, error) {
	if err := h.repo.DeleteAt(ctx, req.Index); err != nil {
		if errors.Is(err, repository.ErrIndexOutOfRange) {
			return nil, huma.Error404NotFound("Result not found", err)
		}
		return nil, huma.Error500InternalServerError("Failed to delete result", err)
	}
	log.Info().Int("index", req.Index).Msg("Result deleted")
	return nil, nil
}

// ClearResults removes every stored result
func (h *ResultsHandler) ClearResults(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if err := h.repo.DeleteAll(ctx); err != nil {
		return nil, huma.Error500InternalServerError("Failed to clear results", err)
	}
	log.Info().Msg("All results cleared")
	return nil, nil
}
