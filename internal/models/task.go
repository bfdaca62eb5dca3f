package models

import "time"

type ExecutorStatus int

const (
	ExecutorUnsynced ExecutorStatus = iota
	ExecutorSynced
)

type RenameStatus int

const (
	RenamePending RenameStatus = iota
	RenameDone
)

// TaskKey is the (sourceId, episode) pair that identifies one episode of
// one subscription. At most one Task exists per key.
type TaskKey struct {
	SourceID int64
	Episode  int
}

// TaskKeySet is a set of dedup keys.
type TaskKeySet map[TaskKey]struct{}

func (s TaskKeySet) Has(k TaskKey) bool {
	_, ok := s[k]
	return ok
}

func (s TaskKeySet) Add(k TaskKey) {
	s[k] = struct{}{}
}

// Task is the durable record that an episode was handed to the executor.
type Task struct {
	ID                int64          `json:"id"`
	SourceID          int64          `json:"source_id"`
	Episode           int            `json:"episode"`
	TorrentIdentifier string         `json:"torrent_name"`
	ExecutorStatus    ExecutorStatus `json:"executor_status"`
	RenameStatus      RenameStatus   `json:"rename_status"`
	OutputFilename    string         `json:"filename"`
	IsNew             bool           `json:"is_new"`
	CreatedAt         time.Time      `json:"created_at,omitempty"`
}

func (t Task) Key() TaskKey {
	return TaskKey{SourceID: t.SourceID, Episode: t.Episode}
}
