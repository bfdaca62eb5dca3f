package models

import (
	"fmt"
	"time"
)

// AnimeKind distinguishes series from one-off releases. Only series
// releases carry a parseable episode number.
type AnimeKind int

const (
	KindSeries AnimeKind = iota
	KindMovie
	KindSpecial
)

func (k AnimeKind) String() string {
	switch k {
	case KindSeries:
		return "series"
	case KindMovie:
		return "movie"
	case KindSpecial:
		return "special"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Subscription is a user's standing interest in a series.
type Subscription struct {
	ID             int64     `json:"id"`
	SourceID       int64     `json:"source_id"`
	DisplayName    string    `json:"display_name"`
	UpdateSchedule int       `json:"update_schedule"` // 1-7 weekday, 8 irregular
	Kind           AnimeKind `json:"kind"`
	Subscribed     bool      `json:"subscribed"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TargetDir is the executor save path for this subscription's torrents.
func (s Subscription) TargetDir() string {
	return fmt.Sprintf("%s(%d)", s.DisplayName, s.SourceID)
}

// ReleaseGroup is the organization that produced a release ("subgroup").
type ReleaseGroup struct {
	GroupID   int64  `json:"group_id"`
	GroupName string `json:"group_name"`
}

// Season is a broadcast quarter, 1 for spring through 4 for winter.
type Season int

const (
	Spring Season = iota + 1
	Summer
	Autumn
	Winter
)

// Valid reports whether s names one of the four seasons.
func (s Season) Valid() bool {
	return s >= Spring && s <= Winter
}

// Broadcast places a series in the seasonal catalogue. A series belongs to
// the first season it was listed in.
type Broadcast struct {
	ID       int64  `json:"id"`
	SourceID int64  `json:"source_id"`
	Year     int    `json:"year"`
	Season   Season `json:"season"`
}
