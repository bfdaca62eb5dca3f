package statussync

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/executor"
	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/pipeline"
	"github.com/vrsandeep/anisync-go/internal/store"
	"github.com/vrsandeep/anisync-go/internal/util"
)

var animeDirPattern = regexp.MustCompile(`\((\d+)\)$`)

var skippedEntries = map[string]bool{
	"seed":                   true,
	".DS_Store":              true,
	pipeline.VideoConfigName: true,
}

var subtitleExtensions = map[string]bool{
	".ass": true,
	".vtt": true,
	".srt": true,
}

// ReconcileFromExistingFiles records a finished task for every video in
// the download root that the video config knows about. Rows that already
// exist are left alone. A series missing from the catalog is adopted from
// the discovery source first. It returns how many tasks were inserted.
func (s *Synchronizer) ReconcileFromExistingFiles(ctx context.Context) (int, error) {
	dirs, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	videos, err := s.videos.Load()
	if err != nil {
		return 0, err
	}

	checked := make(map[int64]bool)
	inserted := 0
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return inserted, ctx.Err()
		}
		if !dir.IsDir() || skippedEntries[dir.Name()] {
			continue
		}
		m := animeDirPattern.FindStringSubmatch(dir.Name())
		if m == nil {
			continue
		}
		dirSourceID, _ := strconv.ParseInt(m[1], 10, 64)

		files, err := os.ReadDir(filepath.Join(s.root, dir.Name()))
		if err != nil {
			log.Warn().Err(err).Str("dir", dir.Name()).Msg("Could not read anime directory")
			continue
		}
		sort.SliceStable(files, func(i, j int) bool { return util.NaturalSortLess(files[i].Name(), files[j].Name()) })

		for _, file := range files {
			name := file.Name()
			if file.IsDir() || skippedEntries[name] || strings.HasPrefix(name, ".") {
				continue
			}
			if subtitleExtensions[strings.ToLower(filepath.Ext(name))] {
				continue
			}
			entry, ok := videos[name]
			if !ok {
				log.Debug().Str("file", name).Msg("Video not in video config, skipping")
				continue
			}
			sourceID := entry.SourceID
			if sourceID == 0 {
				sourceID = dirSourceID
			}
			if !checked[sourceID] {
				if err := s.ensureSubscription(ctx, sourceID); err != nil {
					return inserted, err
				}
				checked[sourceID] = true
			}

			added, err := s.st.InsertTaskIfAbsent(models.Task{
				SourceID:          sourceID,
				Episode:           entry.Episode,
				TorrentIdentifier: executor.TorrentNameFromHash(entry.TorrentHash),
				ExecutorStatus:    models.ExecutorSynced,
				RenameStatus:      models.RenameDone,
				OutputFilename:    name,
			})
			if err != nil {
				return inserted, err
			}
			if added {
				inserted++
				log.Info().Int64("source_id", sourceID).Int("episode", entry.Episode).Str("file", name).Msg("Recovered task from disk")
			}
		}
	}
	return inserted, nil
}

// ensureSubscription adopts a series that has files on disk but no catalog
// row. Only a catalog failure is returned; a source failure is logged and
// retried by the next reconcile.
func (s *Synchronizer) ensureSubscription(ctx context.Context, sourceID int64) error {
	_, err := s.st.GetSubscription(sourceID)
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := s.pipeline.Adopt(ctx, sourceID); err != nil {
		if errors.Is(err, store.ErrPersistence) {
			return err
		}
		log.Warn().Err(err).Int64("source_id", sourceID).Msg("Could not adopt series found on disk, recovering its tasks anyway")
	}
	return nil
}
