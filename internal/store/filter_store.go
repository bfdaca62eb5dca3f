package store

import (
	"database/sql"

	"github.com/vrsandeep/anisync-go/internal/models"
)

// ListFilters returns every suppression rule.
func (s *Store) ListFilters() ([]models.Filter, error) {
	rows, err := s.db.Query("SELECT id, source_id, kind, value, object FROM filters ORDER BY id")
	if err != nil {
		return nil, wrap("list filters", err)
	}
	defer rows.Close()

	var filters []models.Filter
	for rows.Next() {
		var f models.Filter
		if err := rows.Scan(&f.ID, &f.SourceID, &f.Kind, &f.Value, &f.Object); err != nil {
			return nil, wrap("scan filter", err)
		}
		filters = append(filters, f)
	}
	return filters, wrap("list filters", rows.Err())
}

// AddFilter stores a suppression rule. A local episode floor replaces the
// previous floor of the same subscription; other rules are insert-if-absent.
func (s *Store) AddFilter(f models.Filter) (*models.Filter, error) {
	if f.Object == models.FilterGlobal {
		f.SourceID = 0
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, wrap("begin filter insert", err)
	}
	defer tx.Rollback()

	if f.Kind == models.FilterEpisodeFloor {
		_, err := tx.Exec("DELETE FROM filters WHERE source_id = ? AND kind = ? AND object = ?",
			f.SourceID, models.FilterEpisodeFloor, models.FilterLocal)
		if err != nil {
			return nil, wrap("replace episode floor", err)
		}
	}

	_, err = tx.Exec("INSERT OR IGNORE INTO filters (source_id, kind, value, object) VALUES (?, ?, ?, ?)",
		f.SourceID, f.Kind, f.Value, f.Object)
	if err != nil {
		return nil, wrap("insert filter", err)
	}
	err = tx.QueryRow("SELECT id FROM filters WHERE source_id = ? AND kind = ? AND value = ? AND object = ?",
		f.SourceID, f.Kind, f.Value, f.Object).Scan(&f.ID)
	if err != nil {
		return nil, wrap("read filter id", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap("commit filter", err)
	}
	return &f, nil
}

// DeleteFilter removes a rule by id.
func (s *Store) DeleteFilter(id int64) error {
	res, err := s.db.Exec("DELETE FROM filters WHERE id = ?", id)
	if err != nil {
		return wrap("delete filter", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrap("delete filter", sql.ErrNoRows)
	}
	return nil
}
