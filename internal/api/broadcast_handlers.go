package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vrsandeep/anisync-go/internal/models"
)

func seasonParams(year, season string) (int, models.Season, bool) {
	y, err := strconv.Atoi(year)
	if err != nil || y <= 0 {
		return 0, 0, false
	}
	s, err := strconv.Atoi(season)
	if err != nil || !models.Season(s).Valid() {
		return 0, 0, false
	}
	return y, models.Season(s), true
}

func (s *Server) handleListBroadcast(w http.ResponseWriter, r *http.Request) {
	year, season, ok := seasonParams(chi.URLParam(r, "year"), chi.URLParam(r, "season"))
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid year or season")
		return
	}
	subs, err := s.store.ListBroadcast(year, season)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	RespondWithJSON(w, http.StatusOK, subs)
}

// handleUpdateBroadcast scrapes one season into the catalogue.
func (s *Server) handleUpdateBroadcast(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Year   int `json:"year"`
		Season int `json:"season"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	year, season, ok := seasonParams(strconv.Itoa(payload.Year), strconv.Itoa(payload.Season))
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid year or season")
		return
	}
	added, err := s.app.Pipeline().UpdateBroadcast(r.Context(), year, season)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) handleSearchSubscriptions(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing search keyword")
		return
	}
	subs, err := s.store.SearchSubscriptions(keyword)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	RespondWithJSON(w, http.StatusOK, subs)
}

// handleUpdateSeeds stores the current releases of a series without
// creating tasks.
func (s *Server) handleUpdateSeeds(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := int64Param(r, "sourceID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid source ID")
		return
	}
	sub, err := s.store.GetSubscription(sourceID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	added, err := s.app.Pipeline().UpdateSeeds(r.Context(), sub)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]int{"added": added})
}
