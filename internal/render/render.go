// Package render writes JSON responses for the HTTP handlers.
package render

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const contentTypeJSON = "application/json; charset=utf-8"

// JSON encodes v before writing the header, so an unencodable value turns
// into a 500 error body instead of an empty response.
func JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "status", status, "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{
			Error:   http.StatusText(status),
			Message: "failed to encode response",
		})
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("failed to write JSON response", "status", status, "error", err)
	}
}

// Error writes {"error": <status text>, "message": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Error: http.StatusText(status), Message: msg})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
