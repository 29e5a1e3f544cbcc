package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/queryfed/queryfed/internal/models"
	"github.com/queryfed/queryfed/internal/pipeline"
)

// AskHandler handles POST /api/v1/ask, the single entry point for both
// smalltalk and federated data questions.
type AskHandler struct {
	pipe *pipeline.Pipeline
}

func NewAskHandler(pipe *pipeline.Pipeline) *AskHandler {
	return &AskHandler{pipe: pipe}
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		models.WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	res, err := h.pipe.Ask(r.Context(), &req)
	if err != nil {
		models.WriteError(w, statusFor(err), err.Error())
		return
	}

	resp := models.AskResponse{
		Status:           "success",
		Query:            req.Query,
		Answer:           res.Answer,
		Sources:          res.Sources,
		ConfidenceBucket: res.Bucket,
		ExecutionTimeMs:  res.ExecutionTimeMs,
		Metadata: map[string]any{
			"intent": string(res.Kind),
		},
	}
	if res.NewConversation {
		resp.Metadata["new_conversation"] = true
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrClassification):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSchemaValidation), errors.Is(err, models.ErrSQLValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrExecution):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
