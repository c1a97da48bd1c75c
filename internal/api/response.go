// Package api provides HTTP response utilities for HuntRelay.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
)

// writeTextResponse writes a plain-text response with the given status code.
// The webhook contract is text-based, matching what the SMS relay expects.
func writeTextResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprint(w, body); err != nil {
		slog.Error("Server.writeTextResponse: failed to write response", "error", err)
	}
}
