package store

import (
	"errors"
	"testing"

	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/testutil"
)

func TestSeedStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)

	seeds := []models.Seed{
		{SourceID: 3310, GroupID: 583, Episode: 1, PayloadLocator: "/Download/20240101/aaa.torrent"},
		{SourceID: 3310, GroupID: 583, Episode: 2, PayloadLocator: "/Download/20240108/bbb.torrent"},
		{SourceID: 3310, GroupID: 382, Episode: 2, PayloadLocator: "/Download/20240108/ccc.torrent"},
	}
	n, err := s.AddSeeds(seeds)
	if err != nil {
		t.Fatalf("AddSeeds failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 inserted seeds, got %d", n)
	}

	t.Run("Consumed seeds stay consumed", func(t *testing.T) {
		if _, err := s.ConsumeSeedAndInsertTask("/Download/20240101/aaa.torrent",
			models.Task{SourceID: seeds[0].SourceID, Episode: seeds[0].Episode, TorrentIdentifier: "aaa.torrent"}); err != nil {
			t.Fatalf("ConsumeSeedAndInsertTask failed: %v", err)
		}
		n, err := s.AddSeeds(seeds[:1])
		if err != nil {
			t.Fatalf("AddSeeds failed: %v", err)
		}
		if n != 0 {
			t.Errorf("Re-adding a known locator must be a no-op, inserted %d", n)
		}
		statuses, err := s.SeedStatuses([]string{"/Download/20240101/aaa.torrent", "/Download/20240108/bbb.torrent", "/unknown"})
		if err != nil {
			t.Fatalf("SeedStatuses failed: %v", err)
		}
		if statuses["/Download/20240101/aaa.torrent"] != models.SeedConsumed {
			t.Error("Expected aaa to be consumed")
		}
		if statuses["/Download/20240108/bbb.torrent"] != models.SeedPending {
			t.Error("Expected bbb to be pending")
		}
		if _, ok := statuses["/unknown"]; ok {
			t.Error("Unknown locators must be absent")
		}
	})

	t.Run("List by episode", func(t *testing.T) {
		ep2, err := s.ListSeeds(3310, 2)
		if err != nil {
			t.Fatalf("ListSeeds failed: %v", err)
		}
		if len(ep2) != 2 {
			t.Errorf("Expected 2 seeds for episode 2, got %d", len(ep2))
		}
		all, _ := s.ListSeeds(3310, -1)
		if len(all) != 3 {
			t.Errorf("Expected 3 seeds in total, got %d", len(all))
		}
	})

	t.Run("Find by file name", func(t *testing.T) {
		seed, err := s.GetSeedByFileName(3310, "ccc.torrent")
		if err != nil {
			t.Fatalf("GetSeedByFileName failed: %v", err)
		}
		if seed.GroupID != 382 {
			t.Errorf("Expected group 382, got %d", seed.GroupID)
		}
		if _, err := s.GetSeedByFileName(3310, "zzz.torrent"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}
