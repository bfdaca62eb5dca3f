package models

import "time"

// PassReport summarizes one reconciliation pass.
type PassReport struct {
	ID                string    `json:"id"`
	Trigger           string    `json:"trigger"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at,omitempty"`
	Subscriptions     int       `json:"subscriptions"`
	DiscoveryFailures int       `json:"discovery_failures"`
	GroupFailures     int       `json:"group_failures"`
	Discovered        int       `json:"discovered"`
	Selected          int       `json:"selected"`
	Created           int       `json:"created"`
	FetchFailures     int       `json:"fetch_failures"`
	SubmitFailures    int       `json:"submit_failures"`
	RenamePending     int       `json:"rename_pending"`
	Synced            int       `json:"synced"`
	Cancelled         bool      `json:"cancelled"`
	Error             string    `json:"error,omitempty"`
}

// ProgressEntry is one row of the download progress snapshot.
type ProgressEntry struct {
	TorrentName string `json:"torrent_name"`
	Progress    string `json:"progress"`
}
