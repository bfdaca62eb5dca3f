package store

import (
	"strings"

	"github.com/vrsandeep/anisync-go/internal/models"
)

// AddBroadcasts stores seasonal catalogue entries. A series already listed
// keeps its first season. It returns how many entries were new.
func (s *Store) AddBroadcasts(broadcasts []models.Broadcast) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, wrap("begin broadcast insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO broadcasts (source_id, year, season) VALUES (?, ?, ?)")
	if err != nil {
		return 0, wrap("prepare broadcast insert", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, b := range broadcasts {
		res, err := stmt.Exec(b.SourceID, b.Year, b.Season)
		if err != nil {
			return 0, wrap("insert broadcast", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, wrap("commit broadcasts", tx.Commit())
}

// ListBroadcast returns the series of one season, by weekday and then name.
func (s *Store) ListBroadcast(year int, season models.Season) ([]*models.Subscription, error) {
	return s.querySubscriptions(`
		SELECT `+prefixed("s.", subscriptionColumns)+`
		FROM broadcasts b JOIN subscriptions s ON s.source_id = b.source_id
		WHERE b.year = ? AND b.season = ?
		ORDER BY s.update_schedule, s.display_name`, year, season)
}

// SearchSubscriptions finds series whose name contains keyword,
// subscribed ones first.
func (s *Store) SearchSubscriptions(keyword string) ([]*models.Subscription, error) {
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(keyword)
	return s.querySubscriptions(`
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE display_name LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY subscribed DESC, id`, escaped)
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}
