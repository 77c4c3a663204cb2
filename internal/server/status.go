package server

import (
	"net/http"

	"github.com/ayusman/mudra/internal/gesture"
)

type historyResponse struct {
	SessionID string                `json:"session_id"`
	Capacity  int                   `json:"capacity"`
	Labels    []gesture.Label       `json:"labels"`
	Counts    map[gesture.Label]int `json:"counts"`
}

// handleStatus returns the live session snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := s.config.Status.Session()
	if sess == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no session running"})
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleHistory returns the rolling label window, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := s.config.Status.Session()
	if sess == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no session running"})
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sess.ID(),
		Capacity:  sess.HistoryCap(),
		Labels:    sess.History(),
		Counts:    sess.HistoryCounts(),
	})
}
