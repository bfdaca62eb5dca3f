package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/executor"
	"github.com/vrsandeep/anisync-go/internal/models"
)

// handleListTasks lists tasks. With ?source_id the subscription's tasks
// are returned and their new flag is cleared afterwards.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var sourceID int64
	if v := r.URL.Query().Get("source_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid source ID")
			return
		}
		sourceID = n
	}
	tasks, err := s.store.ListTasks(sourceID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	if sourceID != 0 {
		if err := s.store.MarkTasksSeen(sourceID); err != nil {
			log.Warn().Err(err).Int64("source_id", sourceID).Msg("Failed to clear new flag")
		}
	}
	RespondWithJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskInfo(w http.ResponseWriter, r *http.Request) {
	torrent := chi.URLParam(r, "torrent")
	info, err := s.app.Executor().QueryTorrentInfo(r.Context(), executor.HashFromTorrentName(torrent))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, executor.View(*info))
}

func (s *Server) handlePauseTask(w http.ResponseWriter, r *http.Request) {
	torrent := chi.URLParam(r, "torrent")
	if err := s.app.Executor().PauseTorrent(r.Context(), executor.HashFromTorrentName(torrent)); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Paused"})
}

func (s *Server) handleResumeTask(w http.ResponseWriter, r *http.Request) {
	torrent := chi.URLParam(r, "torrent")
	if err := s.app.Executor().ResumeTorrent(r.Context(), executor.HashFromTorrentName(torrent)); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Resumed"})
}

// handleDeleteTask removes the torrent and its task. Repeating the call
// succeeds.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	torrent := chi.URLParam(r, "torrent")
	if err := s.app.Sync().DeleteTask(r.Context(), torrent); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncTasks(w http.ResponseWriter, r *http.Request) {
	report, err := s.app.Sweep(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, report)
}

func (s *Server) handleReconcileFiles(w http.ResponseWriter, r *http.Request) {
	added, err := s.app.Sync().ReconcileFromExistingFiles(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]int{"added": added})
}
