// Package seedfilter decides which discovered seeds become tasks. It is the
// single place that enforces one task per (subscription, episode).
package seedfilter

import (
	"sort"

	"github.com/vrsandeep/anisync-go/internal/models"
)

// Dedup drops candidates that are consumed, whose episode already has a
// task in existing, or whose episode was already selected earlier in the
// same batch. Output keeps input order. existing is not modified.
func Dedup(candidates []models.Seed, existing models.TaskKeySet) []models.Seed {
	return Apply(candidates, existing, Rules{})
}

// Rules holds the suppression filters in effect for a pass.
type Rules struct {
	globalBlocked map[int64]bool
	localBlocked  map[int64]map[int64]bool
	floors        map[int64]int64
}

// NewRules indexes filter rows for lookup.
func NewRules(filters []models.Filter) Rules {
	r := Rules{
		globalBlocked: make(map[int64]bool),
		localBlocked:  make(map[int64]map[int64]bool),
		floors:        make(map[int64]int64),
	}
	for _, f := range filters {
		switch {
		case f.Kind == models.FilterSubgroupBlock && f.Object == models.FilterGlobal:
			r.globalBlocked[f.Value] = true
		case f.Kind == models.FilterSubgroupBlock:
			if r.localBlocked[f.SourceID] == nil {
				r.localBlocked[f.SourceID] = make(map[int64]bool)
			}
			r.localBlocked[f.SourceID][f.Value] = true
		case f.Kind == models.FilterEpisodeFloor && f.Object == models.FilterLocal:
			r.floors[f.SourceID] = f.Value
		}
	}
	return r
}

// Suppressed reports whether a filter rule hides the seed.
func (r Rules) Suppressed(s models.Seed) bool {
	if r.globalBlocked[s.GroupID] || r.localBlocked[s.SourceID][s.GroupID] {
		return true
	}
	floor, ok := r.floors[s.SourceID]
	return ok && int64(s.Episode) <= floor
}

// Apply runs the suppression rules and then the dedup.
func Apply(candidates []models.Seed, existing models.TaskKeySet, rules Rules) []models.Seed {
	selected := make(models.TaskKeySet, len(candidates))
	var out []models.Seed
	for _, s := range candidates {
		if s.Status == models.SeedConsumed {
			continue
		}
		k := s.Key()
		if existing.Has(k) || selected.Has(k) {
			continue
		}
		if rules.Suppressed(s) {
			continue
		}
		selected.Add(k)
		out = append(out, s)
	}
	return out
}

// Keys returns the dedup keys of seeds.
func Keys(seeds []models.Seed) models.TaskKeySet {
	keys := make(models.TaskKeySet, len(seeds))
	for _, s := range seeds {
		keys.Add(s.Key())
	}
	return keys
}

// PrioritizeGroups stably orders seeds so that releases from preferred
// groups come first; Dedup then keeps the preferred release of an episode.
func PrioritizeGroups(seeds []models.Seed, priority []int) []models.Seed {
	rank := make(map[int64]int, len(priority))
	for i, id := range priority {
		rank[int64(id)] = i
	}
	out := make([]models.Seed, len(seeds))
	copy(out, seeds)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i].GroupID]
		rj, jok := rank[out[j].GroupID]
		if iok && jok {
			return ri < rj
		}
		return iok && !jok
	})
	return out
}
