package api

import (
	"encoding/json"
	"net/http"

	"github.com/vrsandeep/anisync-go/internal/models"
)

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.store.ListFilters()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if filters == nil {
		filters = []models.Filter{}
	}
	RespondWithJSON(w, http.StatusOK, filters)
}

func (s *Server) handleAddFilter(w http.ResponseWriter, r *http.Request) {
	var f models.Filter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := f.Validate(); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.store.AddFilter(f)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "filterID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid filter ID")
		return
	}
	if err := s.store.DeleteFilter(id); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
