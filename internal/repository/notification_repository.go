package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/member-directory/internal/model"
)

// NotificationRepo reads and trims the operator inbox.  Notifications are
// created by ProfileRepo.Create inside the registration transaction.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// List returns every pending notification joined with its profile, oldest first.
func (r *NotificationRepo) List(ctx context.Context) ([]model.NotificationEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT n.id, n.profile_id, n.created_at, p.email, p.first_name, p.last_name
FROM notifications n JOIN profiles p ON p.id = n.profile_id
ORDER BY n.created_at, n.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.NotificationEntry{}
	for rows.Next() {
		var e model.NotificationEntry
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.CreatedAt, &e.Email, &e.FirstName, &e.LastName); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteByID dismisses one notification.
func (r *NotificationRepo) DeleteByID(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM notifications WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
