// Package statussync reconciles what the executor reports back into the
// catalog: completion, renames, deletions and files already on disk.
package statussync

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/executor"
	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/pipeline"
	"github.com/vrsandeep/anisync-go/internal/store"
)

// Synchronizer polls the executor and updates tasks.
type Synchronizer struct {
	st       *store.Store
	exec     executor.Executor
	pipeline *pipeline.Pipeline
	renamer  *pipeline.Renamer
	videos   *pipeline.VideoConfig
	root     string
}

func New(st *store.Store, exec executor.Executor, p *pipeline.Pipeline, downloadRoot string) *Synchronizer {
	return &Synchronizer{
		st:       st,
		exec:     exec,
		pipeline: p,
		renamer:  p.Renamer(),
		videos:   p.VideoConfig(),
		root:     downloadRoot,
	}
}

// SyncReport counts what one SyncOnce call did.
type SyncReport struct {
	Synced      int `json:"synced"`
	InProgress  int `json:"in_progress"`
	Resubmitted int `json:"resubmitted"`
	Failed      int `json:"failed"`
}

// SyncOnce marks unsynced tasks whose download completed as synced. A task
// the executor no longer knows is resubmitted under the same identifier.
// Tasks are never deleted here.
func (s *Synchronizer) SyncOnce(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	tasks, err := s.st.ListUnsyncedTasks()
	if err != nil {
		return report, err
	}
	if len(tasks) == 0 {
		return report, nil
	}

	completed := make(map[string]bool)
	ids, err := s.exec.ListCompletedTorrentIds(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not list completed torrents, querying one by one")
	}
	for _, id := range ids {
		completed[id] = true
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		hash := executor.HashFromTorrentName(task.TorrentIdentifier)
		logger := log.With().Str("torrent", task.TorrentIdentifier).Int64("source_id", task.SourceID).Logger()

		if !completed[hash] {
			info, err := s.exec.QueryTorrentInfo(ctx, hash)
			switch {
			case errors.Is(err, executor.ErrNotFound):
				if err := s.pipeline.Resubmit(ctx, task); err != nil {
					if errors.Is(err, store.ErrPersistence) {
						return report, err
					}
					report.Failed++
					logger.Error().Err(err).Msg("Failed to resubmit missing torrent")
					continue
				}
				report.Resubmitted++
				logger.Info().Msg("Resubmitted torrent missing from the executor")
				continue
			case err != nil:
				report.Failed++
				logger.Warn().Err(err).Msg("Failed to query torrent")
				continue
			case !info.Complete():
				report.InProgress++
				continue
			}
		}

		if err := s.st.MarkTaskSynced(task.TorrentIdentifier); err != nil {
			return report, err
		}
		report.Synced++
		logger.Info().Msg("Download finished")
	}
	return report, nil
}

// RenamePending retries the rename of every task still waiting for one.
// Tasks the executor does not know yet are left to SyncOnce.
func (s *Synchronizer) RenamePending(ctx context.Context) (int, error) {
	tasks, err := s.st.ListRenamePendingTasks()
	if err != nil {
		return 0, err
	}
	renamed := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.renamer.Rename(ctx, task); err != nil {
			if errors.Is(err, store.ErrPersistence) {
				return renamed, err
			}
			log.Debug().Err(err).Str("torrent", task.TorrentIdentifier).Msg("Rename still pending")
			continue
		}
		renamed++
	}
	return renamed, nil
}

// Sweep runs SyncOnce followed by RenamePending.
func (s *Synchronizer) Sweep(ctx context.Context) (SyncReport, error) {
	report, err := s.SyncOnce(ctx)
	if err != nil {
		return report, err
	}
	if _, err := s.RenamePending(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// DeleteTask removes a torrent from the executor and its task from the
// catalog. A torrent the executor does not have counts as removed, so
// deleting twice succeeds.
func (s *Synchronizer) DeleteTask(ctx context.Context, torrentIdentifier string) error {
	hash := executor.HashFromTorrentName(torrentIdentifier)
	if err := s.exec.DeleteTorrent(ctx, hash); err != nil && !errors.Is(err, executor.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", torrentIdentifier, err)
	}
	if err := s.st.DeleteTask(torrentIdentifier); err != nil {
		return err
	}
	log.Info().Str("torrent", torrentIdentifier).Msg("Deleted task")
	return nil
}

// Progress returns the progress label of each torrent. Torrents whose
// query fails are returned separately.
func (s *Synchronizer) Progress(ctx context.Context, torrents []string) ([]models.ProgressEntry, []string) {
	var entries []models.ProgressEntry
	var failed []string
	for _, name := range torrents {
		info, err := s.exec.QueryTorrentInfo(ctx, executor.HashFromTorrentName(name))
		if err != nil {
			failed = append(failed, name)
			continue
		}
		entries = append(entries, models.ProgressEntry{TorrentName: name, Progress: executor.ProgressLabel(info.Progress)})
	}
	return entries, failed
}
