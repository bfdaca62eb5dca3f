// Package discovery finds candidate releases for subscriptions.
package discovery

import (
	"context"
	"errors"

	"github.com/vrsandeep/anisync-go/internal/models"
)

// ErrTransientSource marks a network or parse failure of the discovery
// source. It is isolated to one subscription or one seed and retried by
// the next pass.
var ErrTransientSource = errors.New("discovery source unavailable")

// Source is the remote index of releases.
type Source interface {
	// Anime returns the metadata of a series, used when subscribing.
	Anime(ctx context.Context, sourceID int64) (*models.Subscription, error)
	// Season lists the series broadcast in one season, unsubscribed.
	Season(ctx context.Context, year int, season models.Season) ([]models.Subscription, error)
	// Subgroups lists the release groups publishing a series.
	Subgroups(ctx context.Context, sourceID int64) ([]models.ReleaseGroup, error)
	// Seeds lists the releases of one group for a series.
	Seeds(ctx context.Context, sourceID, groupID int64, kind models.AnimeKind) ([]models.Seed, error)
	// FetchPayload downloads the torrent descriptor behind a locator.
	FetchPayload(ctx context.Context, locator string) ([]byte, error)
}
