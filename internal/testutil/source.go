package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vrsandeep/anisync-go/internal/discovery"
	"github.com/vrsandeep/anisync-go/internal/models"
)

// FakeSource is an in-memory discovery source. Releases are keyed by
// source id and group id; failures can be injected per source id, per
// group and per payload locator.
type FakeSource struct {
	mu         sync.Mutex
	animes     map[int64]models.Subscription
	seasons    map[[2]int][]models.Subscription
	groups     map[int64][]models.ReleaseGroup
	releases   map[[2]int64][]models.Seed
	payloads   map[string][]byte
	failSource map[int64]bool
	failGroup  map[[2]int64]bool
	failFetch  map[string]bool
	fetches    int
}

var _ discovery.Source = (*FakeSource)(nil)

func NewFakeSource() *FakeSource {
	return &FakeSource{
		animes:     make(map[int64]models.Subscription),
		seasons:    make(map[[2]int][]models.Subscription),
		groups:     make(map[int64][]models.ReleaseGroup),
		releases:   make(map[[2]int64][]models.Seed),
		payloads:   make(map[string][]byte),
		failSource: make(map[int64]bool),
		failGroup:  make(map[[2]int64]bool),
		failFetch:  make(map[string]bool),
	}
}

// AddAnime registers series metadata.
func (f *FakeSource) AddAnime(sub models.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.animes[sub.SourceID] = sub
}

// AddSeason lists series in a broadcast season.
func (f *FakeSource) AddSeason(year int, season models.Season, subs ...models.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int{year, int(season)}
	f.seasons[key] = append(f.seasons[key], subs...)
}

// AddRelease registers a release of group for a series. The group is
// listed for the series the first time it is seen. The payload is the
// locator itself unless a different one is stored with SetPayload.
func (f *FakeSource) AddRelease(group models.ReleaseGroup, seed models.Seed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	known := false
	for _, g := range f.groups[seed.SourceID] {
		if g.GroupID == group.GroupID {
			known = true
			break
		}
	}
	if !known {
		f.groups[seed.SourceID] = append(f.groups[seed.SourceID], group)
	}
	seed.GroupID = group.GroupID
	key := [2]int64{seed.SourceID, group.GroupID}
	f.releases[key] = append(f.releases[key], seed)
	if _, ok := f.payloads[seed.PayloadLocator]; !ok {
		f.payloads[seed.PayloadLocator] = []byte("d8:announce" + seed.PayloadLocator + "e")
	}
}

func (f *FakeSource) SetPayload(locator string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[locator] = payload
}

// FailSource makes every lookup of a series fail.
func (f *FakeSource) FailSource(sourceID int64, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSource[sourceID] = fail
}

// FailGroup makes the release lookup of one group of a series fail.
func (f *FakeSource) FailGroup(sourceID, groupID int64, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGroup[[2]int64{sourceID, groupID}] = fail
}

// FailFetch makes the payload download of a locator fail.
func (f *FakeSource) FailFetch(locator string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFetch[locator] = fail
}

// Fetches returns how many payload downloads succeeded.
func (f *FakeSource) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *FakeSource) Anime(ctx context.Context, sourceID int64) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSource[sourceID] {
		return nil, fmt.Errorf("%w: anime %d", discovery.ErrTransientSource, sourceID)
	}
	sub, ok := f.animes[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: anime %d: not found", discovery.ErrTransientSource, sourceID)
	}
	return &sub, nil
}

func (f *FakeSource) Subgroups(ctx context.Context, sourceID int64) ([]models.ReleaseGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSource[sourceID] {
		return nil, fmt.Errorf("%w: subgroups of %d", discovery.ErrTransientSource, sourceID)
	}
	return append([]models.ReleaseGroup(nil), f.groups[sourceID]...), nil
}

func (f *FakeSource) Seeds(ctx context.Context, sourceID, groupID int64, kind models.AnimeKind) ([]models.Seed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSource[sourceID] || f.failGroup[[2]int64{sourceID, groupID}] {
		return nil, fmt.Errorf("%w: seeds of %d/%d", discovery.ErrTransientSource, sourceID, groupID)
	}
	return append([]models.Seed(nil), f.releases[[2]int64{sourceID, groupID}]...), nil
}

func (f *FakeSource) FetchPayload(ctx context.Context, locator string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch[locator] {
		return nil, fmt.Errorf("%w: fetch %s", discovery.ErrTransientSource, locator)
	}
	payload, ok := f.payloads[locator]
	if !ok {
		return nil, fmt.Errorf("%w: fetch %s: not found", discovery.ErrTransientSource, locator)
	}
	f.fetches++
	return payload, nil
}

func (f *FakeSource) Season(ctx context.Context, year int, season models.Season) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Subscription(nil), f.seasons[[2]int{year, int(season)}]...), nil
}
