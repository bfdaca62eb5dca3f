// Package executor defines the download client the pipeline drives.
package executor

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when the executor has no torrent with the
	// requested id.
	ErrNotFound = errors.New("torrent not found")
	// ErrExecutor wraps every other failure reported by the download client.
	ErrExecutor = errors.New("executor request failed")
)

const torrentSuffix = ".torrent"

// TorrentInfo is the executor's view of one torrent.
type TorrentInfo struct {
	Hash            string  `json:"hash"`
	Name            string  `json:"name"`
	SizeBytes       int64   `json:"size"`
	Progress        float64 `json:"progress"`
	PeerCount       int     `json:"num_leechs"`
	SeedCount       int     `json:"num_seeds"`
	DownloadRateBps int64   `json:"dlspeed"`
	ETASeconds      int64   `json:"eta"`
	State           string  `json:"state"`
}

// Complete reports whether the payload is fully downloaded.
func (i TorrentInfo) Complete() bool {
	return i.Progress >= 1
}

// Executor is the remote download client. Ids are the executor's
// content-hash identifiers.
type Executor interface {
	AddTorrent(ctx context.Context, payload []byte, fileName, targetDir string) error
	DeleteTorrent(ctx context.Context, id string) error
	PauseTorrent(ctx context.Context, id string) error
	ResumeTorrent(ctx context.Context, id string) error
	QueryTorrentInfo(ctx context.Context, id string) (*TorrentInfo, error)
	RenameFile(ctx context.Context, id, oldPath, newPath string) error
	ListCompletedTorrentIds(ctx context.Context) ([]string, error)
}

// Versioner is implemented by executors that can report their API
// version. It doubles as a reachability check.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

// SavePather is implemented by executors that can report the directory
// relative save paths are resolved against.
type SavePather interface {
	DefaultSavePath(ctx context.Context) (string, error)
}

// HashFromTorrentName turns a stored torrent identifier ("<hash>.torrent")
// into the executor id.
func HashFromTorrentName(name string) string {
	return strings.TrimSuffix(name, torrentSuffix)
}

// TorrentNameFromHash is the inverse of HashFromTorrentName.
func TorrentNameFromHash(hash string) string {
	return hash + torrentSuffix
}
