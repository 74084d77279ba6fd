package util

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"expenses-server/src/models"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// WriteValidationError answers 400 with one message list per rejected field.
func WriteValidationError(w http.ResponseWriter, fields map[string][]string) {
	WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "validation failed", Fields: fields})
}
