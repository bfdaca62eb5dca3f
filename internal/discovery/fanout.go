package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/vrsandeep/anisync-go/internal/models"
)

// GroupStore persists newly seen release groups.
type GroupStore interface {
	InsertSubgroupsIfAbsent(groups []models.ReleaseGroup) (int, error)
}

// Result is the merged outcome of one discovery fan-out.
type Result struct {
	Seeds []models.Seed
	// Failed holds the subscriptions (by source id) excluded from this pass.
	Failed map[int64]error
	// GroupFailures counts (subscription, group) pairs whose releases could
	// not be fetched. Their subscription still contributes other groups.
	GroupFailures int
}

// FanOut queries the source for many subscriptions on a bounded pool of
// workers, isolating failures per subscription.
type FanOut struct {
	source  Source
	groups  GroupStore
	workers int
	limiter *rate.Limiter
}

// NewFanOut creates a fan-out. requestsPerSecond <= 0 disables pacing.
func NewFanOut(source Source, groups GroupStore, workers int, requestsPerSecond float64) *FanOut {
	if workers <= 0 {
		workers = 1
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &FanOut{
		source:  source,
		groups:  groups,
		workers: workers,
		limiter: rate.NewLimiter(limit, workers),
	}
}

type groupJob struct {
	sub   *models.Subscription
	group models.ReleaseGroup
}

// Discover resolves the seeds of every given subscription, in subscription
// order and then source order. Only a failure to persist release groups is
// returned as an error; source failures are recorded in the result.
func (f *FanOut) Discover(ctx context.Context, subs []*models.Subscription) (*Result, error) {
	result := &Result{Failed: make(map[int64]error)}

	groupLists := runPool(ctx, f.workers, f.limiter, subs, func(ctx context.Context, sub *models.Subscription) ([]models.ReleaseGroup, error) {
		return f.source.Subgroups(ctx, sub.SourceID)
	})

	var jobs []groupJob
	for i, sub := range subs {
		if err := groupLists[i].err; err != nil {
			result.Failed[sub.SourceID] = err
			log.Warn().Err(err).Int64("source_id", sub.SourceID).Str("anime", sub.DisplayName).
				Msg("Discovery failed, skipping subscription for this pass")
			continue
		}
		groups := groupLists[i].value
		if _, err := f.groups.InsertSubgroupsIfAbsent(groups); err != nil {
			return nil, fmt.Errorf("store release groups: %w", err)
		}
		for _, g := range groups {
			jobs = append(jobs, groupJob{sub: sub, group: g})
		}
	}

	seedLists := runPool(ctx, f.workers, f.limiter, jobs, func(ctx context.Context, j groupJob) ([]models.Seed, error) {
		return f.source.Seeds(ctx, j.sub.SourceID, j.group.GroupID, j.sub.Kind)
	})

	for i, j := range jobs {
		if err := seedLists[i].err; err != nil {
			result.GroupFailures++
			log.Warn().Err(err).Int64("source_id", j.sub.SourceID).Int64("group_id", j.group.GroupID).
				Msg("Release lookup failed for group")
			continue
		}
		result.Seeds = append(result.Seeds, seedLists[i].value...)
	}
	return result, nil
}

type poolResult[R any] struct {
	value R
	err   error
}

// runPool applies fn to every item on a fixed number of workers, pacing
// calls with the limiter. Results keep the order of items.
func runPool[T, R any](ctx context.Context, workers int, limiter *rate.Limiter, items []T, fn func(context.Context, T) (R, error)) []poolResult[R] {
	results := make([]poolResult[R], len(items))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := limiter.Wait(ctx); err != nil {
					results[i].err = fmt.Errorf("%w: %w", ErrTransientSource, err)
					continue
				}
				v, err := fn(ctx, items[i])
				results[i] = poolResult[R]{value: v, err: err}
			}
		}()
	}

	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return results
}
