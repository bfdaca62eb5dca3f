package store

import (
	"database/sql"

	"github.com/vrsandeep/anisync-go/internal/models"
)

const subscriptionColumns = `id, source_id, display_name, update_schedule, kind, subscribed, image_url, created_at`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var sub models.Subscription
	var imageURL sql.NullString
	err := row.Scan(&sub.ID, &sub.SourceID, &sub.DisplayName, &sub.UpdateSchedule, &sub.Kind,
		&sub.Subscribed, &imageURL, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.ImageURL = imageURL.String
	return &sub, nil
}

// UpsertSubscription inserts a subscription or refreshes the scraped
// metadata of an existing one. The subscribed flag of an existing row is
// left untouched.
func (s *Store) UpsertSubscription(sub models.Subscription) (*models.Subscription, error) {
	row := s.db.QueryRow(`
		INSERT INTO subscriptions (source_id, display_name, update_schedule, kind, subscribed, image_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			display_name = excluded.display_name,
			update_schedule = excluded.update_schedule,
			kind = excluded.kind,
			image_url = excluded.image_url
		RETURNING `+subscriptionColumns,
		sub.SourceID, sub.DisplayName, sub.UpdateSchedule, sub.Kind, sub.Subscribed, sub.ImageURL)
	out, err := scanSubscription(row)
	return out, wrap("upsert subscription", err)
}

// GetSubscription returns the subscription tracking the given source id.
func (s *Store) GetSubscription(sourceID int64) (*models.Subscription, error) {
	row := s.db.QueryRow("SELECT "+subscriptionColumns+" FROM subscriptions WHERE source_id = ?", sourceID)
	sub, err := scanSubscription(row)
	return sub, wrap("get subscription", err)
}

// ListSubscriptions returns subscriptions ordered by id. With onlySubscribed
// it returns just the ones the reconciliation pass should visit.
func (s *Store) ListSubscriptions(onlySubscribed bool) ([]*models.Subscription, error) {
	query := "SELECT " + subscriptionColumns + " FROM subscriptions"
	if onlySubscribed {
		query += " WHERE subscribed = 1"
	}
	query += " ORDER BY id"
	return s.querySubscriptions(query)
}

func (s *Store) querySubscriptions(query string, args ...any) ([]*models.Subscription, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrap("list subscriptions", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, wrap("scan subscription", err)
		}
		subs = append(subs, sub)
	}
	return subs, wrap("list subscriptions", rows.Err())
}

// ToggleSubscription flips the stored subscribed flag and returns the new value.
func (s *Store) ToggleSubscription(sourceID int64) (bool, error) {
	var subscribed bool
	err := s.db.QueryRow(
		"UPDATE subscriptions SET subscribed = 1 - subscribed WHERE source_id = ? RETURNING subscribed",
		sourceID).Scan(&subscribed)
	return subscribed, wrap("toggle subscription", err)
}

// SetSubscribed stores an explicit subscribed value.
func (s *Store) SetSubscribed(sourceID int64, subscribed bool) error {
	res, err := s.db.Exec("UPDATE subscriptions SET subscribed = ? WHERE source_id = ?", subscribed, sourceID)
	if err != nil {
		return wrap("set subscribed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrap("set subscribed", sql.ErrNoRows)
	}
	return nil
}

// DeleteSubscription removes a subscription. Its seeds and tasks are kept
// so that re-subscribing does not download episodes twice.
func (s *Store) DeleteSubscription(sourceID int64) error {
	res, err := s.db.Exec("DELETE FROM subscriptions WHERE source_id = ?", sourceID)
	if err != nil {
		return wrap("delete subscription", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrap("delete subscription", sql.ErrNoRows)
	}
	return nil
}
