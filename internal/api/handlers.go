// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atriumxr/atrium/internal/recovery"
	"github.com/atriumxr/atrium/internal/state"
)

type stateResponse struct {
	Current       string            `json:"current"`
	Previous      string            `json:"previous,omitempty"`
	TimeInCurrent string            `json:"timeInCurrent"`
	Reachable     []state.State     `json:"reachable"`
	Durations     map[string]string `json:"durations,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	m := s.engine.States
	durations := make(map[string]string)
	for st, d := range m.Durations() {
		durations[string(st)] = d.String()
	}
	current := m.Current()
	s.writeJSON(w, r, http.StatusOK, stateResponse{
		Current:       string(current),
		Previous:      string(m.Previous()),
		TimeInCurrent: m.TimeInCurrent().Round(time.Millisecond).String(),
		Reachable:     state.ReachableFrom(current),
		Durations:     durations,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"history": s.engine.States.History(),
	})
}

type errorsResponse struct {
	Counts   map[recovery.ErrorKind]int `json:"counts"`
	InFlight bool                       `json:"inFlight"`
	Last     *lastError                 `json:"last,omitempty"`
}

type lastError struct {
	Kind    recovery.ErrorKind `json:"kind"`
	Message string             `json:"message"`
	At      time.Time          `json:"at"`
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	rec := s.engine.Recovery
	resp := errorsResponse{
		Counts:   rec.Counts(),
		InFlight: rec.InFlight(),
	}
	if last := rec.LastError(); last != nil {
		msg := ""
		if last.Err != nil {
			msg = last.Err.Error()
		}
		resp.Last = &lastError{Kind: last.Kind, Message: msg, At: last.At}
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleErrorReset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "kind")
	kind, ok := recovery.ParseKind(name)
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, "unknown error kind: "+name)
		return
	}
	s.engine.Recovery.ResetCount(kind)
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"kind":  kind,
		"reset": true,
	})
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Resources
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"count":   reg.Count(),
		"entries": reg.Entries(),
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, r, http.StatusNotFound, "journal is not enabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.writeError(w, r, http.StatusBadRequest, "limit must be an integer in [1, 1000]")
			return
		}
		limit = n
	}
	records, err := s.journal.Recent(limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to read journal")
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"records": records,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().
			Err(err).
			Str("event", "api.encode_error").
			Str("path", r.URL.Path).
			Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, map[string]any{
		"error":  msg,
		"status": status,
	})
}
