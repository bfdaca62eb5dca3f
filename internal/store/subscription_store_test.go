// Verify all subscription-related database functions.

package store

import (
	"errors"
	"testing"

	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/testutil"
)

func TestSubscriptionStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)

	a, err := s.UpsertSubscription(models.Subscription{SourceID: 3310, DisplayName: "无职转生", UpdateSchedule: 1, Subscribed: true})
	if err != nil {
		t.Fatalf("UpsertSubscription failed: %v", err)
	}
	s.UpsertSubscription(models.Subscription{SourceID: 3311, DisplayName: "Other Show", UpdateSchedule: 8})

	t.Run("Upsert keeps the subscribed flag", func(t *testing.T) {
		again, err := s.UpsertSubscription(models.Subscription{SourceID: 3310, DisplayName: "Mushoku Tensei", UpdateSchedule: 2})
		if err != nil {
			t.Fatalf("UpsertSubscription failed: %v", err)
		}
		if again.ID != a.ID {
			t.Errorf("Expected the same row, got id %d and %d", a.ID, again.ID)
		}
		if !again.Subscribed {
			t.Error("Refreshing metadata must not unsubscribe")
		}
		if again.DisplayName != "Mushoku Tensei" || again.UpdateSchedule != 2 {
			t.Errorf("Metadata was not refreshed: %+v", again)
		}
	})

	t.Run("List only subscribed", func(t *testing.T) {
		subs, err := s.ListSubscriptions(true)
		if err != nil {
			t.Fatalf("ListSubscriptions failed: %v", err)
		}
		if len(subs) != 1 || subs[0].SourceID != 3310 {
			t.Errorf("Expected only 3310, got %+v", subs)
		}
		all, _ := s.ListSubscriptions(false)
		if len(all) != 2 {
			t.Errorf("Expected 2 subscriptions, got %d", len(all))
		}
	})

	t.Run("Toggle flips the stored flag", func(t *testing.T) {
		on, err := s.ToggleSubscription(3311)
		if err != nil {
			t.Fatalf("ToggleSubscription failed: %v", err)
		}
		if !on {
			t.Error("Expected 3311 to be subscribed after the first toggle")
		}
		off, _ := s.ToggleSubscription(3311)
		if off {
			t.Error("Expected 3311 to be unsubscribed after the second toggle")
		}
	})

	t.Run("Set subscribed", func(t *testing.T) {
		if err := s.SetSubscribed(3311, true); err != nil {
			t.Fatalf("SetSubscribed failed: %v", err)
		}
		if err := s.SetSubscribed(3311, true); err != nil {
			t.Fatalf("SetSubscribed must be idempotent: %v", err)
		}
		sub, _ := s.GetSubscription(3311)
		if !sub.Subscribed {
			t.Error("Expected 3311 to be subscribed")
		}
		if err := s.SetSubscribed(9999, true); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for unknown source, got %v", err)
		}
	})

	t.Run("Delete Subscription", func(t *testing.T) {
		if err := s.DeleteSubscription(3311); err != nil {
			t.Fatalf("DeleteSubscription failed: %v", err)
		}
		if _, err := s.GetSubscription(3311); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := s.DeleteSubscription(3311); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
		}
	})
}

func TestSubgroupStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)

	n, err := s.InsertSubgroupsIfAbsent([]models.ReleaseGroup{{GroupID: 583, GroupName: "ANi"}, {GroupID: 382, GroupName: "喵萌奶茶屋"}})
	if err != nil {
		t.Fatalf("InsertSubgroupsIfAbsent failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 new groups, got %d", n)
	}

	n, _ = s.InsertSubgroupsIfAbsent([]models.ReleaseGroup{{GroupID: 583, GroupName: "Renamed"}, {GroupID: 370, GroupName: "LoliHouse"}})
	if n != 1 {
		t.Errorf("Expected 1 new group, got %d", n)
	}

	g, err := s.GetSubgroup(583)
	if err != nil {
		t.Fatalf("GetSubgroup failed: %v", err)
	}
	if g.GroupName != "ANi" {
		t.Errorf("First seen name must win, got %q", g.GroupName)
	}

	groups, _ := s.ListSubgroups()
	if len(groups) != 3 {
		t.Errorf("Expected 3 groups, got %d", len(groups))
	}
}
