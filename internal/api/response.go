// Package api implements the HTTP transport for the league services: the
// single JSON-RPC /mcp endpoint each service exposes, plus GET /health and
// GET /metrics. Business logic lives in the coordinator packages; this
// package only does request decoding, dispatch, and response encoding.
package api

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON-encoded response with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON decodes the request body into dst, capped at 1 MiB. Returns
// false and writes a JSON-RPC parse-error response if decoding fails, so
// callers can early-return.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		JSON(w, http.StatusOK, map[string]any{
			"jsonrpc": "2.0",
			"id":      nil,
			"error":   map[string]any{"code": -32700, "message": "parse error: " + err.Error()},
		})
		return false
	}
	return true
}
