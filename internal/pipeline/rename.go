package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/executor"
	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/store"
)

// ErrNotResolved is returned when the executor has not reported a file
// name for a torrent yet.
var ErrNotResolved = errors.New("file name not resolved yet")

const defaultExtension = "mp4"

// separators would turn a renamed file into a nested path inside the torrent.
var separators = strings.NewReplacer("/", "-", "\\", "-")

// RenameTarget builds the file name of an episode:
// "{anime} - {episode} - {group}.{ext}". The extension comes from the
// name the executor reported and defaults to mp4. Names are kept as they
// are except for path separators.
func RenameTarget(anime string, episode int, group, reportedName string) string {
	ext := strings.TrimPrefix(path.Ext(reportedName), ".")
	if ext == "" {
		ext = defaultExtension
	}
	return fmt.Sprintf("%s - %d - %s.%s", separators.Replace(anime), episode, separators.Replace(group), ext)
}

// Renamer renames downloaded episodes inside the executor.
type Renamer struct {
	st     *store.Store
	exec   executor.Executor
	videos *VideoConfig
}

func NewRenamer(st *store.Store, exec executor.Executor, videos *VideoConfig) *Renamer {
	return &Renamer{st: st, exec: exec, videos: videos}
}

// Rename gives the task's file its conventional name and records it in the
// catalog and the video config. A task already renamed is left alone.
func (r *Renamer) Rename(ctx context.Context, task models.Task) (string, error) {
	if task.RenameStatus == models.RenameDone {
		return task.OutputFilename, nil
	}

	sub, err := r.st.GetSubscription(task.SourceID)
	if err != nil {
		return "", err
	}
	groupName, err := r.groupName(task)
	if err != nil {
		return "", err
	}

	hash := executor.HashFromTorrentName(task.TorrentIdentifier)
	info, err := r.exec.QueryTorrentInfo(ctx, hash)
	if err != nil {
		return "", err
	}
	if info.Name == "" {
		return "", ErrNotResolved
	}

	target := RenameTarget(sub.DisplayName, task.Episode, groupName, info.Name)
	if info.Name != target {
		if err := r.exec.RenameFile(ctx, hash, info.Name, target); err != nil {
			return "", err
		}
		log.Info().Str("torrent", task.TorrentIdentifier).Str("from", info.Name).Str("to", target).Msg("Renamed episode")
	}

	if err := r.st.MarkTaskRenamed(task.TorrentIdentifier, target); err != nil {
		return "", err
	}
	entry := VideoEntry{TorrentHash: hash, SourceID: task.SourceID, Episode: task.Episode}
	if err := r.videos.Put(target, entry); err != nil {
		log.Warn().Err(err).Str("file", target).Msg("Could not update video config")
	}
	return target, nil
}

func (r *Renamer) groupName(task models.Task) (string, error) {
	seed, err := r.st.GetSeedByFileName(task.SourceID, task.TorrentIdentifier)
	if err != nil {
		return "", fmt.Errorf("seed of %s: %w", task.TorrentIdentifier, err)
	}
	group, err := r.st.GetSubgroup(seed.GroupID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("%d", seed.GroupID), nil
	}
	if err != nil {
		return "", err
	}
	return group.GroupName, nil
}
