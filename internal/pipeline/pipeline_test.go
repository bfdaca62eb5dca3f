package pipeline_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/pipeline"
	"github.com/vrsandeep/anisync-go/internal/store"
	"github.com/vrsandeep/anisync-go/internal/testutil"
)

var (
	ani     = models.ReleaseGroup{GroupID: 583, GroupName: "ANi"}
	nekomoe = models.ReleaseGroup{GroupID: 382, GroupName: "喵萌奶茶屋"}
)

func always() bool { return true }

type fixture struct {
	st   *store.Store
	src  *testutil.FakeSource
	exec *testutil.FakeExecutor
	p    *pipeline.Pipeline
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		st:   store.New(testutil.SetupTestDB(t)),
		src:  testutil.NewFakeSource(),
		exec: testutil.NewFakeExecutor(),
		root: t.TempDir(),
	}
	f.p = pipeline.New(f.st, f.src, f.exec, pipeline.Options{
		DownloadRoot:     f.root,
		Workers:          2,
		SubgroupPriority: []int{583, 382},
	})
	return f
}

func (f *fixture) subscribe(t *testing.T, sourceID int64, name string) {
	t.Helper()
	_, err := f.st.UpsertSubscription(models.Subscription{SourceID: sourceID, DisplayName: name, UpdateSchedule: 1, Subscribed: true})
	require.NoError(t, err)
}

func (f *fixture) release(group models.ReleaseGroup, sourceID int64, episode int, hash string) {
	f.src.AddRelease(group, models.Seed{
		SourceID:       sourceID,
		Episode:        episode,
		PayloadLocator: "/Download/20240101/" + hash + ".torrent",
	})
}

func (f *fixture) pass(t *testing.T) *models.PassReport {
	t.Helper()
	report := &models.PassReport{}
	require.NoError(t, f.p.RunForAllSubscriptions(context.Background(), always, report))
	return report
}

func TestRenameTarget(t *testing.T) {
	assert.Equal(t, "无职转生 - 3 - 喵萌奶茶屋.mkv", pipeline.RenameTarget("无职转生", 3, "喵萌奶茶屋", "[Nekomoe kissaten] Mushoku Tensei [03][1080p].mkv"))
	assert.Equal(t, "无职转生 - 3 - 喵萌奶茶屋.mp4", pipeline.RenameTarget("无职转生", 3, "喵萌奶茶屋", "no extension"))
	assert.Equal(t, "Re:Zero? - 12 - LoliHouse.mkv", pipeline.RenameTarget("Re:Zero?", 12, "LoliHouse", "x.mkv"),
		"names are not sanitized")
	assert.Equal(t, "Fate-stay night - 1 - A-B.mkv", pipeline.RenameTarget("Fate/stay night", 1, `A\B`, "x.mkv"))
}

func TestAtMostOneTaskPerEpisode(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3310, "无职转生")
	f.release(nekomoe, 3310, 1, "n1")
	f.release(ani, 3310, 1, "a1")
	f.release(ani, 3310, 2, "a2")

	report := f.pass(t)
	assert.Equal(t, 2, report.Created)

	// Later passes see the same releases plus new ones.
	f.release(nekomoe, 3310, 2, "n2")
	f.release(nekomoe, 3310, 3, "n3")
	for i := 0; i < 3; i++ {
		f.pass(t)
	}

	tasks, err := f.st.ListTasks(3310)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	seen := map[int]string{}
	for _, task := range tasks {
		_, dup := seen[task.Episode]
		assert.False(t, dup, "episode %d has more than one task", task.Episode)
		seen[task.Episode] = task.TorrentIdentifier
	}
	assert.Equal(t, "a1.torrent", seen[1], "the preferred group wins")
	assert.Equal(t, "a2.torrent", seen[2])
	assert.Equal(t, "n3.torrent", seen[3])
	assert.Len(t, f.exec.Added(), 3)
}

func TestSubmitAndRename(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3310, "无职转生")
	f.release(nekomoe, 3310, 3, "abc")
	f.exec.SetReportedName("abc", "[Nekomoe kissaten] Mushoku Tensei [03][1080p].mkv")

	report := f.pass(t)
	assert.Equal(t, 1, report.Created)
	assert.Zero(t, report.RenamePending)

	added := f.exec.Added()
	require.Len(t, added, 1)
	assert.Equal(t, "abc.torrent", added[0].FileName)
	assert.Equal(t, "无职转生(3310)", added[0].TargetDir)

	renames := f.exec.Renames()
	require.Len(t, renames, 1)
	assert.Equal(t, "abc", renames[0].ID)
	assert.Equal(t, "无职转生 - 3 - 喵萌奶茶屋.mkv", renames[0].NewPath)

	task, err := f.st.GetTask("abc.torrent")
	require.NoError(t, err)
	assert.Equal(t, models.RenameDone, task.RenameStatus)
	assert.Equal(t, models.ExecutorUnsynced, task.ExecutorStatus)
	assert.Equal(t, "无职转生 - 3 - 喵萌奶茶屋.mkv", task.OutputFilename)
	assert.True(t, task.IsNew)

	payload, err := os.ReadFile(pipeline.SeedPath(f.root, 3310, "abc.torrent"))
	require.NoError(t, err)
	assert.NotEmpty(t, payload)

	entries, err := pipeline.NewVideoConfig(f.root).Load()
	require.NoError(t, err)
	assert.Equal(t, pipeline.VideoEntry{TorrentHash: "abc", SourceID: 3310, Episode: 3}, entries["无职转生 - 3 - 喵萌奶茶屋.mkv"])
}

func TestPartialFailureIsolation(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 1, "Broken")
	f.subscribe(t, 2, "Healthy")
	f.release(ani, 1, 1, "b1")
	f.release(ani, 2, 1, "h1")
	f.release(ani, 2, 2, "h2")
	f.src.FailSource(1, true)
	f.src.FailFetch("/Download/20240101/h2.torrent", true)

	report := f.pass(t)
	assert.Equal(t, 1, report.DiscoveryFailures)
	assert.Equal(t, 1, report.FetchFailures)
	assert.Equal(t, 1, report.Created)

	seeds, err := f.st.ListSeeds(2, 2)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, models.SeedPending, seeds[0].Status, "a failed fetch must leave the seed pending")

	f.src.FailSource(1, false)
	f.src.FailFetch("/Download/20240101/h2.torrent", false)
	report = f.pass(t)
	assert.Equal(t, 2, report.Created)

	tasks, err := f.st.ListTasks(0)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestSubmitFailureLeavesTaskUnsynced(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3310, "无职转生")
	f.release(ani, 3310, 1, "a1")
	f.exec.FailAdd("a1.torrent", true)

	report := f.pass(t)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.SubmitFailures)

	task, err := f.st.GetTask("a1.torrent")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutorUnsynced, task.ExecutorStatus)
	assert.Equal(t, models.RenamePending, task.RenameStatus)

	report = f.pass(t)
	assert.Zero(t, report.Created, "a retry pass must not duplicate the task")

	f.exec.FailAdd("a1.torrent", false)
	require.NoError(t, f.p.Resubmit(context.Background(), *task))
	assert.True(t, f.exec.Has("a1"))
}

func TestFiltersSuppressSeeds(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3310, "无职转生")
	f.release(ani, 3310, 1, "a1")
	f.release(nekomoe, 3310, 1, "n1")
	f.release(ani, 3310, 2, "a2")
	_, err := f.st.AddFilter(models.Filter{Kind: models.FilterSubgroupBlock, Value: 583, Object: models.FilterGlobal})
	require.NoError(t, err)

	f.pass(t)

	tasks, err := f.st.ListTasks(3310)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "n1.torrent", tasks[0].TorrentIdentifier)
}

func TestKeepGoingStopsBetweenSeeds(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3310, "无职转生")
	for i, hash := range []string{"e1", "e2", "e3"} {
		f.release(ani, 3310, i+1, hash)
	}

	calls := 0
	keepGoing := func() bool {
		calls++
		// Allow the check after discovery and the first seed only.
		return calls <= 2
	}
	report := &models.PassReport{}
	require.NoError(t, f.p.RunForAllSubscriptions(context.Background(), keepGoing, report))
	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Created)
}

func TestRunForOne(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3310, "无职转生")
	_, err := f.st.AddSeeds([]models.Seed{
		{SourceID: 3310, GroupID: 382, Episode: 5, PayloadLocator: "/Download/20240101/n5.torrent"},
		{SourceID: 3310, GroupID: 583, Episode: 6, PayloadLocator: "/Download/20240101/a6.torrent"},
	})
	require.NoError(t, err)
	f.src.SetPayload("/Download/20240101/n5.torrent", []byte("d8:announcee"))

	report := &models.PassReport{}
	require.NoError(t, f.p.RunForOne(context.Background(), 3310, 5, always, report))
	assert.Equal(t, 1, report.Created)

	tasks, err := f.st.ListTasks(3310)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 5, tasks[0].Episode)

	report = &models.PassReport{}
	require.NoError(t, f.p.RunForOne(context.Background(), 3310, 5, always, report))
	assert.Zero(t, report.Created)
}

func TestRunForOneStopsWhenHalted(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3310, "无职转生")
	_, err := f.st.AddSeeds([]models.Seed{
		{SourceID: 3310, GroupID: 382, Episode: 5, PayloadLocator: "/Download/20240101/n5.torrent"},
	})
	require.NoError(t, err)

	report := &models.PassReport{}
	require.NoError(t, f.p.RunForOne(context.Background(), 3310, 5, func() bool { return false }, report))
	assert.True(t, report.Cancelled)
	assert.Empty(t, f.exec.Added())
}

func TestRenameKeepsDisplayNameVerbatim(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 2000, "Re:Zero kara Hajimeru Isekai Seikatsu?")
	f.release(ani, 2000, 7, "rz7")
	f.exec.SetReportedName("rz7", "[ANi] Re Zero - 07.mp4")

	f.pass(t)

	renames := f.exec.Renames()
	require.Len(t, renames, 1)
	assert.Equal(t, "Re:Zero kara Hajimeru Isekai Seikatsu? - 7 - ANi.mp4", renames[0].NewPath)
}

func TestUpdateBroadcast(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3311, "葬送的芙莉莲")
	f.src.AddSeason(2024, models.Spring,
		models.Subscription{SourceID: 3310, DisplayName: "无职转生 第二季", UpdateSchedule: 1},
		models.Subscription{SourceID: 3311, DisplayName: "葬送的芙莉莲", UpdateSchedule: 5},
	)

	added, err := f.p.UpdateBroadcast(context.Background(), 2024, models.Spring)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	listed, err := f.st.ListBroadcast(2024, models.Spring)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, int64(3310), listed[0].SourceID)
	assert.False(t, listed[0].Subscribed)
	assert.True(t, listed[1].Subscribed, "an existing subscription stays subscribed")

	added, err = f.p.UpdateBroadcast(context.Background(), 2024, models.Spring)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestUpdateSeeds(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, 3310, "无职转生")
	f.release(ani, 3310, 1, "a1")
	f.release(nekomoe, 3310, 1, "n1")
	f.src.FailGroup(3310, nekomoe.GroupID, true)

	sub, err := f.st.GetSubscription(3310)
	require.NoError(t, err)
	added, err := f.p.UpdateSeeds(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, 1, added, "a failing group is skipped")

	f.src.FailGroup(3310, nekomoe.GroupID, false)
	added, err = f.p.UpdateSeeds(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Empty(t, f.exec.Added(), "updating seeds never creates tasks")
}
