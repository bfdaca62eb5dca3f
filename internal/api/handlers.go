package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vrsandeep/anisync-go/internal/discovery"
	"github.com/vrsandeep/anisync-go/internal/executor"
	"github.com/vrsandeep/anisync-go/internal/jobs"
	"github.com/vrsandeep/anisync-go/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DB().PingContext(r.Context()); err != nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version()})
}

func (s *Server) handleExecutorVersion(w http.ResponseWriter, r *http.Request) {
	v, ok := s.app.Executor().(executor.Versioner)
	if !ok {
		RespondWithError(w, http.StatusNotImplemented, "Executor does not report a version")
		return
	}
	version, err := v.Version(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": version})
}

// respondWithServiceError maps domain errors onto status codes.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, executor.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrInvalidInterval):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrPassInFlight):
		RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, executor.ErrExecutor), errors.Is(err, discovery.ErrTransientSource):
		RespondWithError(w, http.StatusBadGateway, err.Error())
	default:
		RespondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

func int64Param(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return v, err == nil && v > 0
}
