package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/anisync-go/internal/models"
)

func TestSubscriptionHandlers(t *testing.T) {
	ts := setupTestServer(t)
	ts.source.AddAnime(models.Subscription{SourceID: 3310, DisplayName: "葬送的芙莉莲", UpdateSchedule: 5})

	t.Run("Add by source id", func(t *testing.T) {
		rr := ts.do("POST", "/api/subscriptions", map[string]int64{"source_id": 3310})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		sub := decode[models.Subscription](t, rr)
		assert.Equal(t, "葬送的芙莉莲", sub.DisplayName)
		assert.True(t, sub.Subscribed)
	})

	t.Run("Add rejects a bad payload", func(t *testing.T) {
		rr := ts.do("POST", "/api/subscriptions", `{"source_id":0}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Add reports source failures", func(t *testing.T) {
		rr := ts.do("POST", "/api/subscriptions", map[string]int64{"source_id": 9999})
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("Toggle flips the flag", func(t *testing.T) {
		rr := ts.do("POST", "/api/subscriptions/3310/toggle", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, decode[map[string]bool](t, rr)["subscribed"])

		rr = ts.do("GET", "/api/subscriptions?subscribed=true", nil)
		assert.Empty(t, decode[[]models.Subscription](t, rr))
		rr = ts.do("GET", "/api/subscriptions", nil)
		assert.Len(t, decode[[]models.Subscription](t, rr), 1)
	})

	t.Run("Put sets the flag", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rr := ts.do("PUT", "/api/subscriptions/3310", map[string]bool{"subscribed": true})
			require.Equal(t, http.StatusOK, rr.Code)
		}
		sub, err := ts.store.GetSubscription(3310)
		require.NoError(t, err)
		assert.True(t, sub.Subscribed)
	})

	t.Run("Unknown subscription", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.do("POST", "/api/subscriptions/42/toggle", nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do("PUT", "/api/subscriptions/42", `{"subscribed":true}`).Code)
		assert.Equal(t, http.StatusBadRequest, ts.do("DELETE", "/api/subscriptions/abc", nil).Code)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, ts.do("DELETE", "/api/subscriptions/3310", nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do("DELETE", "/api/subscriptions/3310", nil).Code)
	})
}

func TestRunEpisodeHandler(t *testing.T) {
	ts := setupTestServer(t)
	_, err := ts.store.UpsertSubscription(models.Subscription{SourceID: 3310, DisplayName: "Frieren", Subscribed: true})
	require.NoError(t, err)
	_, err = ts.store.InsertSubgroupsIfAbsent([]models.ReleaseGroup{{GroupID: 583, GroupName: "ANi"}})
	require.NoError(t, err)

	locator := "/Download/20240101/abc123.torrent"
	ts.source.SetPayload(locator, []byte("d8:announcee"))
	_, err = ts.store.AddSeeds([]models.Seed{{SourceID: 3310, GroupID: 583, Episode: 3, PayloadLocator: locator}})
	require.NoError(t, err)

	rr := ts.do("GET", "/api/subscriptions/3310/seeds?episode=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]models.Seed](t, rr), 1)

	assert.Equal(t, http.StatusNotFound, ts.do("POST", "/api/subscriptions/42/episodes/3/run", nil).Code)

	rr = ts.do("POST", "/api/subscriptions/3310/episodes/3/run", nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	ts.app.Loop().Wait()

	added := ts.exec.Added()
	require.Len(t, added, 1)
	assert.Equal(t, "abc123.torrent", added[0].FileName)

	rr = ts.do("GET", "/api/tasks?source_id=3310", nil)
	tasks := decode[[]models.Task](t, rr)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Frieren - 3 - ANi.mp4", tasks[0].OutputFilename)

	rr = ts.do("GET", "/api/subgroups", nil)
	assert.Equal(t, []models.ReleaseGroup{{GroupID: 583, GroupName: "ANi"}}, decode[[]models.ReleaseGroup](t, rr))
}
