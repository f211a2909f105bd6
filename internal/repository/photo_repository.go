package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/member-directory/internal/model"
)

// GetPhotoSlot loads all three representations of one slot, blob included.
func (r *ProfileRepo) GetPhotoSlot(ctx context.Context, id uint64, slot int) (model.PhotoSlot, error) {
	if !model.ValidSlot(slot) {
		return model.PhotoSlot{}, model.ErrInvalidSlot
	}
	var (
		s        model.PhotoSlot
		url, ref sql.NullString
	)
	q := fmt.Sprintf("SELECT %s,%s,%s FROM profiles WHERE id=? LIMIT 1",
		photoColumn(slot, "blob"), photoColumn(slot, "url"), photoColumn(slot, "ref"))
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&s.Blob, &url, &ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PhotoSlot{}, ErrNotFound
		}
		return model.PhotoSlot{}, err
	}
	s.HasBlob = len(s.Blob) > 0
	s.RemoteURL = url.String
	s.LegacyRef = ref.String
	return s, nil
}

// SetPhotoSlot writes all three columns of a slot in a single statement.
func (r *ProfileRepo) SetPhotoSlot(ctx context.Context, id uint64, slot int, s model.PhotoSlot) error {
	return r.writeSlot(ctx, id, slot, nullBytes(s.Blob), nullString(s.RemoteURL), nullString(s.LegacyRef))
}

// ClearPhotoSlot nulls all three columns of a slot in a single statement.
func (r *ProfileRepo) ClearPhotoSlot(ctx context.Context, id uint64, slot int) error {
	return r.writeSlot(ctx, id, slot, nil, nil, nil)
}

func (r *ProfileRepo) writeSlot(ctx context.Context, id uint64, slot int, blob, url, ref any) error {
	if !model.ValidSlot(slot) {
		return model.ErrInvalidSlot
	}
	q := fmt.Sprintf("UPDATE profiles SET %s=?,%s=?,%s=? WHERE id=?",
		photoColumn(slot, "blob"), photoColumn(slot, "url"), photoColumn(slot, "ref"))
	res, err := r.DB.ExecContext(ctx, q, blob, url, ref, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		ok, err := r.IDExists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
	}
	return nil
}
