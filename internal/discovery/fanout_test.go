package discovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/anisync-go/internal/discovery"
	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/store"
	"github.com/vrsandeep/anisync-go/internal/testutil"
)

func release(source int64, ep int, locator string) models.Seed {
	return models.Seed{SourceID: source, Episode: ep, PayloadLocator: locator}
}

func TestFanOutIsolatesFailures(t *testing.T) {
	st := store.New(testutil.SetupTestDB(t))
	src := testutil.NewFakeSource()

	ani := models.ReleaseGroup{GroupID: 583, GroupName: "ANi"}
	nekomoe := models.ReleaseGroup{GroupID: 382, GroupName: "喵萌奶茶屋"}
	src.AddRelease(ani, release(1, 1, "/d/1-1.torrent"))
	src.AddRelease(ani, release(1, 2, "/d/1-2.torrent"))
	src.AddRelease(nekomoe, release(1, 2, "/d/1-2b.torrent"))
	src.AddRelease(ani, release(2, 1, "/d/2-1.torrent"))
	src.AddRelease(ani, release(3, 5, "/d/3-5.torrent"))
	src.AddRelease(nekomoe, release(3, 5, "/d/3-5b.torrent"))

	src.FailSource(2, true)
	src.FailGroup(3, 382, true)

	subs := []*models.Subscription{{SourceID: 1}, {SourceID: 2}, {SourceID: 3}}
	result, err := discovery.NewFanOut(src, st, 3, 0).Discover(context.Background(), subs)
	require.NoError(t, err)

	var locators []string
	for _, s := range result.Seeds {
		locators = append(locators, s.PayloadLocator)
	}
	assert.Equal(t, []string{"/d/1-1.torrent", "/d/1-2.torrent", "/d/1-2b.torrent", "/d/3-5.torrent"}, locators)

	require.Contains(t, result.Failed, int64(2))
	assert.True(t, errors.Is(result.Failed[2], discovery.ErrTransientSource))
	assert.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.GroupFailures)

	groups, err := st.ListSubgroups()
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestFanOutCancelled(t *testing.T) {
	st := store.New(testutil.SetupTestDB(t))
	src := testutil.NewFakeSource()
	src.AddRelease(models.ReleaseGroup{GroupID: 583, GroupName: "ANi"}, release(1, 1, "/d/1-1.torrent"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := discovery.NewFanOut(src, st, 2, 1).Discover(ctx, []*models.Subscription{{SourceID: 1}})
	require.NoError(t, err)
	assert.Empty(t, result.Seeds)
	assert.Contains(t, result.Failed, int64(1))
}
