package models

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Pipeline failure taxonomy. Each degrades locally: classification failures
// fall back to the conversation path, schema/SQL validation failures drop
// one sub-query, execution failures stay isolated to their own task, and an
// empty merge produces the explicit no-data answer.
var (
	ErrClassification   = errors.New("classification failed")
	ErrSchemaValidation = errors.New("schema validation failed")
	ErrSQLValidation    = errors.New("sql validation failed")
	ErrExecution        = errors.New("query execution failed")
	ErrNoData           = errors.New("no data found")
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:  "error",
		Message: message,
		Code:    code,
	})
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
