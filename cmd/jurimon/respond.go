package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hazyhaar/jurimon/judit"
	"github.com/hazyhaar/jurimon/kit"
	"github.com/hazyhaar/jurimon/shield"
)

// writeJSON encodes before writing the status, so an encoding failure is a
// 500 rather than a 200 with an empty body.
func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"internal error"}`+"\n")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

// writeError maps service errors to HTTP statuses. Cooldown refusals carry
// the remaining wait both as remaining_ms and Retry-After.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cd *judit.CooldownError
	switch {
	case errors.As(err, &cd):
		secs := (cd.Remaining.Milliseconds() + 999) / 1000
		w.Header().Set("Retry-After", strconv.FormatInt(max(secs, 1), 10))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":        err.Error(),
			"key":          cd.Key,
			"remaining_ms": cd.Remaining.Milliseconds(),
		})
		return
	case errors.Is(err, judit.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, judit.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, judit.ErrInvalidTransition), errors.Is(err, judit.ErrTrackingDeleted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, judit.ErrSignature):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, judit.ErrUpstream):
		shield.GetLogger(r.Context()).Warn("upstream failure", "error", err)
		msg := err.Error()
		if kit.IsPublic(r.Context()) {
			msg = "provider unavailable, try again later"
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": msg})
	default:
		shield.GetLogger(r.Context()).Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// decodeJSON reads the body into v. Failures are ErrInvalidInput so they map
// to 400 like any other validation error.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: body: %v", judit.ErrInvalidInput, err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}
