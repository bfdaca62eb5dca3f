package store

import (
	"database/sql"

	"github.com/vrsandeep/anisync-go/internal/models"
)

const seedColumns = `id, source_id, group_id, episode, payload_locator, display_name, size_label, status, created_at`

func scanSeed(row scanner) (models.Seed, error) {
	var seed models.Seed
	err := row.Scan(&seed.ID, &seed.SourceID, &seed.GroupID, &seed.Episode, &seed.PayloadLocator,
		&seed.DisplayName, &seed.SizeLabel, &seed.Status, &seed.CreatedAt)
	return seed, err
}

// AddSeeds stores discovered releases, ignoring any whose payload locator
// is already known. Existing rows keep their status, so a consumed seed is
// never reset to pending by a later discovery.
func (s *Store) AddSeeds(seeds []models.Seed) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, wrap("begin seed insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO seeds (source_id, group_id, episode, payload_locator, display_name, size_label, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, wrap("prepare seed insert", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, seed := range seeds {
		res, err := stmt.Exec(seed.SourceID, seed.GroupID, seed.Episode, seed.PayloadLocator,
			seed.DisplayName, seed.SizeLabel, seed.Status)
		if err != nil {
			return 0, wrap("insert seed", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, wrap("commit seeds", tx.Commit())
}

// SeedStatuses returns the stored status for each of the given payload
// locators. Locators that are not stored are absent from the map.
func (s *Store) SeedStatuses(locators []string) (map[string]models.SeedStatus, error) {
	statuses := make(map[string]models.SeedStatus, len(locators))
	stmt, err := s.db.Prepare("SELECT status FROM seeds WHERE payload_locator = ?")
	if err != nil {
		return nil, wrap("prepare seed status", err)
	}
	defer stmt.Close()

	for _, locator := range locators {
		var status models.SeedStatus
		err := stmt.QueryRow(locator).Scan(&status)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, wrap("seed status", err)
		}
		statuses[locator] = status
	}
	return statuses, nil
}

// ListSeeds returns the seeds of one subscription. An episode below zero
// selects every episode.
func (s *Store) ListSeeds(sourceID int64, episode int) ([]models.Seed, error) {
	query := "SELECT " + seedColumns + " FROM seeds WHERE source_id = ?"
	args := []any{sourceID}
	if episode >= 0 {
		query += " AND episode = ?"
		args = append(args, episode)
	}
	query += " ORDER BY episode, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrap("list seeds", err)
	}
	defer rows.Close()

	var seeds []models.Seed
	for rows.Next() {
		seed, err := scanSeed(rows)
		if err != nil {
			return nil, wrap("scan seed", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, wrap("list seeds", rows.Err())
}

// GetSeedByFileName finds the seed of a subscription whose payload locator
// ends with the given file name, i.e. the seed a task was created from.
func (s *Store) GetSeedByFileName(sourceID int64, fileName string) (*models.Seed, error) {
	row := s.db.QueryRow("SELECT "+seedColumns+` FROM seeds
		WHERE source_id = ? AND (payload_locator = ? OR payload_locator LIKE '%/' || ?)
		ORDER BY id LIMIT 1`, sourceID, fileName, fileName)
	seed, err := scanSeed(row)
	if err != nil {
		return nil, wrap("get seed by file name", err)
	}
	return &seed, nil
}
