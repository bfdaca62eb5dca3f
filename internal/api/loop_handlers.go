package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleLoopStart(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Loop().Start(); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Loop().Status())
}

func (s *Server) handleLoopStop(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Loop().Stop(); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Loop().Status())
}

func (s *Server) handleLoopInterval(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IntervalSeconds *int `json:"interval_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.IntervalSeconds == nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.app.Loop().ChangeInterval(*payload.IntervalSeconds); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Loop().Status())
}

func (s *Server) handleLoopStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Loop().Status())
}

// handleLoopRun starts a pass right away, outside the schedule.
func (s *Server) handleLoopRun(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Loop().TriggerNow(); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Reconciliation pass started"})
}
