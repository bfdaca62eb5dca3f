package store

import "github.com/vrsandeep/anisync-go/internal/models"

// InsertSubgroupsIfAbsent stores release groups keyed by group id. A group
// that already exists keeps its first-seen name. It returns how many
// groups were new.
func (s *Store) InsertSubgroupsIfAbsent(groups []models.ReleaseGroup) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, wrap("begin subgroup insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO subgroups (group_id, group_name) VALUES (?, ?)")
	if err != nil {
		return 0, wrap("prepare subgroup insert", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, g := range groups {
		res, err := stmt.Exec(g.GroupID, g.GroupName)
		if err != nil {
			return 0, wrap("insert subgroup", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, wrap("commit subgroups", tx.Commit())
}

// GetSubgroup returns a single release group.
func (s *Store) GetSubgroup(groupID int64) (*models.ReleaseGroup, error) {
	var g models.ReleaseGroup
	err := s.db.QueryRow("SELECT group_id, group_name FROM subgroups WHERE group_id = ?", groupID).
		Scan(&g.GroupID, &g.GroupName)
	if err != nil {
		return nil, wrap("get subgroup", err)
	}
	return &g, nil
}

// ListSubgroups returns every known release group.
func (s *Store) ListSubgroups() ([]models.ReleaseGroup, error) {
	rows, err := s.db.Query("SELECT group_id, group_name FROM subgroups ORDER BY group_id")
	if err != nil {
		return nil, wrap("list subgroups", err)
	}
	defer rows.Close()

	var groups []models.ReleaseGroup
	for rows.Next() {
		var g models.ReleaseGroup
		if err := rows.Scan(&g.GroupID, &g.GroupName); err != nil {
			return nil, wrap("scan subgroup", err)
		}
		groups = append(groups, g)
	}
	return groups, wrap("list subgroups", rows.Err())
}
