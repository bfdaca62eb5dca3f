// Package pipeline turns discovered seeds into executor downloads. Every
// seed goes through the same steps: fetch the payload, record the task,
// submit it, rename the file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/discovery"
	"github.com/vrsandeep/anisync-go/internal/executor"
	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/seedfilter"
	"github.com/vrsandeep/anisync-go/internal/store"
	"github.com/vrsandeep/anisync-go/internal/util"
)

// Options configures a Pipeline.
type Options struct {
	DownloadRoot      string
	Workers           int
	RequestsPerSecond float64
	SubgroupPriority  []int
}

// Pipeline creates tasks for subscriptions.
type Pipeline struct {
	st       *store.Store
	source   discovery.Source
	exec     executor.Executor
	fanout   *discovery.FanOut
	renamer  *Renamer
	videos   *VideoConfig
	root     string
	priority []int
}

func New(st *store.Store, source discovery.Source, exec executor.Executor, opts Options) *Pipeline {
	videos := NewVideoConfig(opts.DownloadRoot)
	return &Pipeline{
		st:       st,
		source:   source,
		exec:     exec,
		fanout:   discovery.NewFanOut(source, st, opts.Workers, opts.RequestsPerSecond),
		renamer:  NewRenamer(st, exec, videos),
		videos:   videos,
		root:     opts.DownloadRoot,
		priority: opts.SubgroupPriority,
	}
}

// Renamer returns the renamer the pipeline uses, shared with the status
// synchronizer so that video config writes are serialized.
func (p *Pipeline) Renamer() *Renamer {
	return p.renamer
}

// VideoConfig returns the video config of the download root.
func (p *Pipeline) VideoConfig() *VideoConfig {
	return p.videos
}

// SeedPath is where the payload of a seed is kept on disk.
func SeedPath(downloadRoot string, sourceID int64, fileName string) string {
	return filepath.Join(downloadRoot, "seed", strconv.FormatInt(sourceID, 10), fileName)
}

// TargetDir is the executor save path of a subscription.
func TargetDir(sub *models.Subscription) string {
	return util.SanitizeFolderName(sub.TargetDir())
}

// RunForAllSubscriptions discovers new releases for every subscribed series
// and creates a task for each episode that has none. keepGoing is checked
// between stages and between seeds; when it turns false the pass stops
// after the seed in progress. Only catalog failures are returned.
func (p *Pipeline) RunForAllSubscriptions(ctx context.Context, keepGoing func() bool, report *models.PassReport) error {
	subs, err := p.st.ListSubscriptions(true)
	if err != nil {
		return err
	}
	report.Subscriptions = len(subs)
	if len(subs) == 0 {
		log.Debug().Msg("No subscriptions to reconcile")
		return nil
	}

	result, err := p.fanout.Discover(ctx, subs)
	if err != nil {
		return err
	}
	report.DiscoveryFailures = len(result.Failed)
	report.GroupFailures = result.GroupFailures
	report.Discovered = len(result.Seeds)

	if !continuing(ctx, keepGoing) {
		report.Cancelled = true
		return nil
	}

	if _, err := p.st.AddSeeds(result.Seeds); err != nil {
		return err
	}
	candidates, err := p.withStoredStatus(result.Seeds)
	if err != nil {
		return err
	}

	bySource := make(map[int64]*models.Subscription, len(subs))
	for _, sub := range subs {
		bySource[sub.SourceID] = sub
	}
	return p.selectAndProcess(ctx, candidates, bySource, keepGoing, report)
}

// RunForOne creates the task of a single episode from the releases
// already in the catalog. keepGoing is checked between seeds.
func (p *Pipeline) RunForOne(ctx context.Context, sourceID int64, episode int, keepGoing func() bool, report *models.PassReport) error {
	sub, err := p.st.GetSubscription(sourceID)
	if err != nil {
		return err
	}
	seeds, err := p.st.ListSeeds(sourceID, episode)
	if err != nil {
		return err
	}
	report.Subscriptions = 1
	report.Discovered = len(seeds)
	return p.selectAndProcess(ctx, seeds, map[int64]*models.Subscription{sourceID: sub}, keepGoing, report)
}

func (p *Pipeline) selectAndProcess(ctx context.Context, candidates []models.Seed, subs map[int64]*models.Subscription, keepGoing func() bool, report *models.PassReport) error {
	existing, err := p.st.ExistingTaskKeys()
	if err != nil {
		return err
	}
	filters, err := p.st.ListFilters()
	if err != nil {
		return err
	}

	selected := seedfilter.Apply(seedfilter.PrioritizeGroups(candidates, p.priority), existing, seedfilter.NewRules(filters))
	report.Selected = len(selected)
	log.Info().Int("candidates", len(candidates)).Int("selected", len(selected)).Msg("Filtered seeds")

	return p.process(ctx, selected, subs, keepGoing, report)
}

// withStoredStatus overlays the catalog status on freshly discovered seeds,
// so that a seed consumed by an earlier pass is not picked again.
func (p *Pipeline) withStoredStatus(seeds []models.Seed) ([]models.Seed, error) {
	locators := make([]string, len(seeds))
	for i, s := range seeds {
		locators[i] = s.PayloadLocator
	}
	statuses, err := p.st.SeedStatuses(locators)
	if err != nil {
		return nil, err
	}
	out := make([]models.Seed, len(seeds))
	for i, s := range seeds {
		if status, ok := statuses[s.PayloadLocator]; ok {
			s.Status = status
		}
		out[i] = s
	}
	return out, nil
}

func (p *Pipeline) process(ctx context.Context, seeds []models.Seed, subs map[int64]*models.Subscription, keepGoing func() bool, report *models.PassReport) error {
	for _, seed := range seeds {
		if !continuing(ctx, keepGoing) {
			report.Cancelled = true
			log.Info().Msg("Pass stopped before all seeds were processed")
			return nil
		}
		sub, ok := subs[seed.SourceID]
		if !ok {
			continue
		}

		fileName := seed.FileName()
		logger := log.With().Int64("source_id", seed.SourceID).Int("episode", seed.Episode).Str("torrent", fileName).Logger()

		payload, err := p.fetch(ctx, seed)
		if err != nil {
			report.FetchFailures++
			logger.Warn().Err(err).Msg("Failed to fetch payload, will retry next pass")
			continue
		}

		task := models.Task{
			SourceID:          seed.SourceID,
			Episode:           seed.Episode,
			TorrentIdentifier: fileName,
			IsNew:             true,
		}
		inserted, err := p.st.ConsumeSeedAndInsertTask(seed.PayloadLocator, task)
		if err != nil {
			return err
		}
		if !inserted {
			logger.Debug().Msg("Task already exists")
			continue
		}
		report.Created++

		if err := p.exec.AddTorrent(ctx, payload, fileName, TargetDir(sub)); err != nil {
			report.SubmitFailures++
			logger.Error().Err(err).Msg("Failed to submit torrent, task left unsynced")
			continue
		}
		logger.Info().Str("anime", sub.DisplayName).Msg("Submitted episode")

		if _, err := p.renamer.Rename(ctx, task); err != nil {
			if errors.Is(err, store.ErrPersistence) {
				return err
			}
			report.RenamePending++
			logger.Debug().Err(err).Msg("Rename deferred")
		}
	}
	return nil
}

// Adopt adds a series the catalog does not know to the subscription list,
// unsubscribed, and stores its current releases. It returns the stored
// subscription.
func (p *Pipeline) Adopt(ctx context.Context, sourceID int64) (*models.Subscription, error) {
	anime, err := p.source.Anime(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	sub, err := p.st.UpsertSubscription(*anime)
	if err != nil {
		return nil, err
	}
	added, err := p.UpdateSeeds(ctx, sub)
	if err != nil {
		return sub, err
	}
	log.Info().Int64("source_id", sourceID).Str("anime", sub.DisplayName).Int("seeds", added).Msg("Adopted series")
	return sub, nil
}

// UpdateSeeds stores the current releases of every group publishing a
// series and returns how many were new. A group whose releases cannot be
// fetched is skipped.
func (p *Pipeline) UpdateSeeds(ctx context.Context, sub *models.Subscription) (int, error) {
	groups, err := p.source.Subgroups(ctx, sub.SourceID)
	if err != nil {
		return 0, err
	}
	if _, err := p.st.InsertSubgroupsIfAbsent(groups); err != nil {
		return 0, err
	}
	var seeds []models.Seed
	for _, g := range groups {
		found, err := p.source.Seeds(ctx, sub.SourceID, g.GroupID, sub.Kind)
		if err != nil {
			log.Warn().Err(err).Int64("source_id", sub.SourceID).Int64("group_id", g.GroupID).Msg("Release lookup failed for group")
			continue
		}
		seeds = append(seeds, found...)
	}
	return p.st.AddSeeds(seeds)
}

// UpdateBroadcast lists the series of one broadcast season in the
// catalog, unsubscribed, and returns how many were new to the season
// catalogue. Series already in the catalog keep their subscribed flag.
func (p *Pipeline) UpdateBroadcast(ctx context.Context, year int, season models.Season) (int, error) {
	listed, err := p.source.Season(ctx, year, season)
	if err != nil {
		return 0, err
	}
	broadcasts := make([]models.Broadcast, 0, len(listed))
	for _, anime := range listed {
		anime.Subscribed = false
		if _, err := p.st.UpsertSubscription(anime); err != nil {
			return 0, err
		}
		broadcasts = append(broadcasts, models.Broadcast{SourceID: anime.SourceID, Year: year, Season: season})
	}
	added, err := p.st.AddBroadcasts(broadcasts)
	if err != nil {
		return 0, err
	}
	log.Info().Int("year", year).Int("season", int(season)).Int("listed", len(listed)).Int("new", added).Msg("Updated broadcast catalogue")
	return added, nil
}

// fetch downloads the payload of a seed and keeps a copy on disk for
// later resubmission.
func (p *Pipeline) fetch(ctx context.Context, seed models.Seed) ([]byte, error) {
	payload, err := p.source.FetchPayload(ctx, seed.PayloadLocator)
	if err != nil {
		return nil, err
	}
	dst := SeedPath(p.root, seed.SourceID, seed.FileName())
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf("create seed dir: %w", err)
	}
	if err := os.WriteFile(dst, payload, 0644); err != nil {
		return nil, fmt.Errorf("store payload: %w", err)
	}
	return payload, nil
}

// Resubmit hands a task's stored payload to the executor again, under the
// same identifier. It is used when the executor lost a torrent. A payload
// missing from disk is fetched again from the source.
func (p *Pipeline) Resubmit(ctx context.Context, task models.Task) error {
	sub, err := p.st.GetSubscription(task.SourceID)
	if err != nil {
		return err
	}
	payload, err := os.ReadFile(SeedPath(p.root, task.SourceID, task.TorrentIdentifier))
	if errors.Is(err, fs.ErrNotExist) {
		seed, serr := p.st.GetSeedByFileName(task.SourceID, task.TorrentIdentifier)
		if serr != nil {
			return fmt.Errorf("payload of %s is gone: %w", task.TorrentIdentifier, serr)
		}
		payload, err = p.fetch(ctx, *seed)
	}
	if err != nil {
		return fmt.Errorf("read stored payload: %w", err)
	}
	return p.exec.AddTorrent(ctx, payload, task.TorrentIdentifier, TargetDir(sub))
}

func continuing(ctx context.Context, keepGoing func() bool) bool {
	return ctx.Err() == nil && keepGoing()
}
