package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vrsandeep/anisync-go/internal/models"
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	onlySubscribed, _ := strconv.ParseBool(r.URL.Query().Get("subscribed"))
	subs, err := s.store.ListSubscriptions(onlySubscribed)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve subscriptions")
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	RespondWithJSON(w, http.StatusOK, subs)
}

// handleAddSubscription scrapes a series by its source id and stores it,
// subscribed.
func (s *Server) handleAddSubscription(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SourceID int64 `json:"source_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.SourceID <= 0 {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	anime, err := s.app.Source().Anime(r.Context(), payload.SourceID)
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	anime.Subscribed = true
	sub, err := s.store.UpsertSubscription(*anime)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to create subscription")
		return
	}
	if !sub.Subscribed {
		if err := s.store.SetSubscribed(sub.SourceID, true); err != nil {
			respondWithServiceError(w, err)
			return
		}
		sub.Subscribed = true
	}
	RespondWithJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleToggleSubscription(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := int64Param(r, "sourceID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid source ID")
		return
	}
	subscribed, err := s.store.ToggleSubscription(sourceID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"subscribed": subscribed})
}

func (s *Server) handleSetSubscribed(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := int64Param(r, "sourceID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid source ID")
		return
	}
	var payload struct {
		Subscribed *bool `json:"subscribed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Subscribed == nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.store.SetSubscribed(sourceID, *payload.Subscribed); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"subscribed": *payload.Subscribed})
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := int64Param(r, "sourceID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid source ID")
		return
	}
	if err := s.store.DeleteSubscription(sourceID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSeeds(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := int64Param(r, "sourceID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid source ID")
		return
	}
	episode := -1
	if v := r.URL.Query().Get("episode"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid episode")
			return
		}
		episode = n
	}
	seeds, err := s.store.ListSeeds(sourceID, episode)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if seeds == nil {
		seeds = []models.Seed{}
	}
	RespondWithJSON(w, http.StatusOK, seeds)
}

func (s *Server) handleListSubgroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListSubgroups()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if groups == nil {
		groups = []models.ReleaseGroup{}
	}
	RespondWithJSON(w, http.StatusOK, groups)
}

// handleRunEpisode creates the task of one episode from the releases
// already in the catalog.
func (s *Server) handleRunEpisode(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := int64Param(r, "sourceID")
	episode, err := strconv.Atoi(chi.URLParam(r, "episode"))
	if !ok || err != nil || episode < 0 {
		RespondWithError(w, http.StatusBadRequest, "Invalid source ID or episode")
		return
	}
	if _, err := s.store.GetSubscription(sourceID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	if err := s.app.RunForOne(sourceID, episode); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Episode queued"})
}
