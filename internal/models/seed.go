package models

import (
	"path"
	"strings"
	"time"
)

type SeedStatus int

const (
	SeedPending SeedStatus = iota
	SeedConsumed
)

// Seed is a discovered candidate release not yet turned into a Task.
type Seed struct {
	ID             int64      `json:"id"`
	SourceID       int64      `json:"source_id"`
	GroupID        int64      `json:"group_id"`
	Episode        int        `json:"episode"`
	PayloadLocator string     `json:"payload_locator"`
	DisplayName    string     `json:"display_name"`
	SizeLabel      string     `json:"size_label"`
	Status         SeedStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
}

// Key returns the dedup key of the episode this seed would create.
func (s Seed) Key() TaskKey {
	return TaskKey{SourceID: s.SourceID, Episode: s.Episode}
}

// FileName is the last path segment of the payload locator. It doubles as
// the torrent identifier of the Task created from this seed.
func (s Seed) FileName() string {
	locator := s.PayloadLocator
	if i := strings.IndexAny(locator, "?#"); i >= 0 {
		locator = locator[:i]
	}
	return path.Base(locator)
}
