package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// VideoConfigName is the file in the download root that maps renamed
// videos back to the task they came from.
const VideoConfigName = ".videoConfig.json"

// VideoEntry is what the video config records about one file.
type VideoEntry struct {
	TorrentHash string `json:"torrent_hash"`
	SourceID    int64  `json:"source_id"`
	Episode     int    `json:"episode"`
}

// VideoConfig guards reads and writes of the video config file.
type VideoConfig struct {
	mu   sync.Mutex
	path string
}

func NewVideoConfig(downloadRoot string) *VideoConfig {
	return &VideoConfig{path: filepath.Join(downloadRoot, VideoConfigName)}
}

// Load returns the current entries. A missing file is an empty config.
func (v *VideoConfig) Load() (map[string]VideoEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.load()
}

func (v *VideoConfig) load() (map[string]VideoEntry, error) {
	entries := make(map[string]VideoEntry)
	data, err := os.ReadFile(v.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read video config: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse video config: %w", err)
	}
	return entries, nil
}

// Put records one file and rewrites the config.
func (v *VideoConfig) Put(fileName string, entry VideoEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.load()
	if err != nil {
		return err
	}
	entries[fileName] = entry

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0755); err != nil {
		return fmt.Errorf("create download root: %w", err)
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write video config: %w", err)
	}
	return os.Rename(tmp, v.path)
}
