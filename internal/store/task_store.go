package store

import (
	"github.com/vrsandeep/anisync-go/internal/models"
)

const taskColumns = `id, source_id, episode, torrent_identifier, executor_status, rename_status, output_filename, is_new, created_at`

func scanTask(row scanner) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.SourceID, &t.Episode, &t.TorrentIdentifier, &t.ExecutorStatus,
		&t.RenameStatus, &t.OutputFilename, &t.IsNew, &t.CreatedAt)
	return t, err
}

// InsertTaskIfAbsent stores a task unless one already exists for the same
// torrent identifier or the same (source, episode) pair. It reports whether
// a row was written.
func (s *Store) InsertTaskIfAbsent(t models.Task) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO tasks (source_id, episode, torrent_identifier, executor_status, rename_status, output_filename, is_new)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		t.SourceID, t.Episode, t.TorrentIdentifier, t.ExecutorStatus, t.RenameStatus, t.OutputFilename, t.IsNew)
	if err != nil {
		return false, wrap("insert task", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ExistingTaskKeys loads the dedup key of every task in the catalog.
func (s *Store) ExistingTaskKeys() (models.TaskKeySet, error) {
	rows, err := s.db.Query("SELECT source_id, episode FROM tasks")
	if err != nil {
		return nil, wrap("load task keys", err)
	}
	defer rows.Close()

	keys := make(models.TaskKeySet)
	for rows.Next() {
		var k models.TaskKey
		if err := rows.Scan(&k.SourceID, &k.Episode); err != nil {
			return nil, wrap("scan task key", err)
		}
		keys.Add(k)
	}
	return keys, wrap("load task keys", rows.Err())
}

func (s *Store) listTasks(where string, args ...any) ([]models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY source_id, episode"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrap("scan task", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, wrap("list tasks", rows.Err())
}

// ListTasks returns all tasks, or those of a single subscription when
// sourceID is non-zero.
func (s *Store) ListTasks(sourceID int64) ([]models.Task, error) {
	if sourceID != 0 {
		return s.listTasks("source_id = ?", sourceID)
	}
	return s.listTasks("")
}

// ListUnsyncedTasks returns tasks whose executor state has not been
// confirmed yet.
func (s *Store) ListUnsyncedTasks() ([]models.Task, error) {
	return s.listTasks("executor_status = ?", models.ExecutorUnsynced)
}

// ListRenamePendingTasks returns tasks still waiting for a rename.
func (s *Store) ListRenamePendingTasks() ([]models.Task, error) {
	return s.listTasks("rename_status = ?", models.RenamePending)
}

// GetTask returns the task for a torrent identifier.
func (s *Store) GetTask(torrentIdentifier string) (*models.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE torrent_identifier = ?", torrentIdentifier)
	t, err := scanTask(row)
	if err != nil {
		return nil, wrap("get task", err)
	}
	return &t, nil
}

// MarkTaskSynced records that the executor reported the task complete.
func (s *Store) MarkTaskSynced(torrentIdentifier string) error {
	_, err := s.db.Exec("UPDATE tasks SET executor_status = ? WHERE torrent_identifier = ?",
		models.ExecutorSynced, torrentIdentifier)
	return wrap("mark task synced", err)
}

// MarkTaskRenamed records the file name the executor now uses.
func (s *Store) MarkTaskRenamed(torrentIdentifier, filename string) error {
	_, err := s.db.Exec("UPDATE tasks SET rename_status = ?, output_filename = ? WHERE torrent_identifier = ?",
		models.RenameDone, filename, torrentIdentifier)
	return wrap("mark task renamed", err)
}

// MarkTasksSeen clears the new flag of every task of a subscription.
func (s *Store) MarkTasksSeen(sourceID int64) error {
	_, err := s.db.Exec("UPDATE tasks SET is_new = 0 WHERE source_id = ?", sourceID)
	return wrap("mark tasks seen", err)
}

// DeleteTask removes a task row. Deleting a task that does not exist is
// not an error.
func (s *Store) DeleteTask(torrentIdentifier string) error {
	_, err := s.db.Exec("DELETE FROM tasks WHERE torrent_identifier = ?", torrentIdentifier)
	return wrap("delete task", err)
}

// ConsumeSeedAndInsertTask marks the seed a task is created from as
// consumed and stores the task in one transaction, so a seed is never
// consumed without its task. It reports whether the task row was written.
func (s *Store) ConsumeSeedAndInsertTask(payloadLocator string, t models.Task) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, wrap("begin consume seed", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE seeds SET status = ? WHERE payload_locator = ? AND status = ?",
		models.SeedConsumed, payloadLocator, models.SeedPending); err != nil {
		return false, wrap("mark seed consumed", err)
	}
	res, err := tx.Exec(`
		INSERT INTO tasks (source_id, episode, torrent_identifier, executor_status, rename_status, output_filename, is_new)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		t.SourceID, t.Episode, t.TorrentIdentifier, t.ExecutorStatus, t.RenameStatus, t.OutputFilename, t.IsNew)
	if err != nil {
		return false, wrap("insert task", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, wrap("commit consume seed", tx.Commit())
}
