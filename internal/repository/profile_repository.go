package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/member-directory/internal/model"
)

// ProfileRepo persists profiles together with their inbox notifications.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

type rowScanner interface{ Scan(dest ...any) error }

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p        model.Profile
		role     string
		status   sql.NullString
		siblings []byte
		urls     [model.PhotoSlots]sql.NullString
		refs     [model.PhotoSlots]sql.NullString
	)
	dest := []any{
		&p.ID, &p.Email, &p.Phone, &p.AltPhone, &p.PasswordHash, &role, &status,
		&p.ResetTokenHash, &p.ResetExpiresAt, &p.VerificationTokenHash, &p.VerifiedAt,
	}
	for _, b := range fieldBindings(&p.Fields) {
		dest = append(dest, b.ptr)
	}
	dest = append(dest, &siblings)
	for i := range p.Photos {
		dest = append(dest, &p.Photos[i].HasBlob, &urls[i], &refs[i])
	}
	dest = append(dest, &p.CreatedAt, &p.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, err
	}
	p.Role = model.Role(role)
	p.Status = model.ModerationStatus(status.String)
	if len(siblings) > 0 {
		p.Fields.Siblings = siblings
	}
	for i := range p.Photos {
		p.Photos[i].RemoteURL = urls[i].String
		p.Photos[i].LegacyRef = refs[i].String
	}
	return p, nil
}

// GetByID fetches a profile without photo bytes; slots report HasBlob.
func (r *ProfileRepo) GetByID(ctx context.Context, id uint64) (model.Profile, error) {
	return scanProfile(r.DB.QueryRowContext(ctx, profileSelect+" WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches a profile by normalized email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanProfile(r.DB.QueryRowContext(ctx, profileSelect+" WHERE email=? LIMIT 1", email))
}

// GetRole returns the current role of a profile.
func (r *ProfileRepo) GetRole(ctx context.Context, id uint64) (model.Role, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, "SELECT role FROM profiles WHERE id=? LIMIT 1", id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return model.Role(role), err
}

// IDExists reports whether id is already allocated.
func (r *ProfileRepo) IDExists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM profiles WHERE id=? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// EmailTaken reports whether another profile than exceptID uses email.
func (r *ProfileRepo) EmailTaken(ctx context.Context, exceptID uint64, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM profiles WHERE email=? AND id<>? LIMIT 1", email, exceptID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// PhoneTaken reports whether any of phones appears in either phone column of
// a profile other than exceptID.
func (r *ProfileRepo) PhoneTaken(ctx context.Context, exceptID uint64, phones ...string) (bool, error) {
	return phoneTaken(ctx, r.DB, "", exceptID, phones...)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// phoneTaken runs the cross-column phone probe on db or a transaction.
// suffix is appended to the statement, e.g. " FOR UPDATE".
func phoneTaken(ctx context.Context, db queryRower, suffix string, exceptID uint64, phones ...string) (bool, error) {
	var list []any
	for _, p := range phones {
		if p != "" {
			list = append(list, p)
		}
	}
	if len(list) == 0 {
		return false, nil
	}
	in := placeholders(len(list))
	args := append(append(append([]any{}, list...), list...), exceptID)
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM profiles WHERE (phone IN ("+in+") OR alt_phone IN ("+in+")) AND id<>? LIMIT 1"+suffix,
		args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Create inserts the profile and its inbox notification in one transaction.
// p.ID must already be allocated; a primary-key collision yields
// ErrDuplicateID and nothing is written.  The unique keys only cover each
// phone column on its own, so the cross-column check is repeated under a
// locking read inside the transaction.
func (r *ProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	cols := []string{"id", "email", "phone", "alt_phone", "password_hash", "role", "moderation_status", "verification_token_hash"}
	args := []any{
		p.ID, strings.ToLower(strings.TrimSpace(p.Email)), p.Phone, p.AltPhone, p.PasswordHash,
		string(p.Role), nullString(string(p.Status)), p.VerificationTokenHash,
	}
	for _, b := range fieldBindings(&p.Fields) {
		cols = append(cols, b.column)
		args = append(args, *b.ptr)
	}
	cols = append(cols, "siblings")
	args = append(args, nullJSON(p.Fields.Siblings))
	for i, s := range p.Photos {
		cols = append(cols, photoColumn(i, "blob"), photoColumn(i, "url"), photoColumn(i, "ref"))
		args = append(args, nullBytes(s.Blob), nullString(s.RemoteURL), nullString(s.LegacyRef))
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	taken, err := phoneTaken(ctx, tx, " FOR UPDATE", p.ID, deref(p.Phone), deref(p.AltPhone))
	if err != nil {
		return fmt.Errorf("check phone: %w", err)
	}
	if taken {
		return ErrPhoneExists
	}

	q := "INSERT INTO profiles (" + strings.Join(cols, ",") + ") VALUES (" + placeholders(len(cols)) + ")"
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return mapDuplicate(err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO notifications (profile_id) VALUES (?)", p.ID); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Decide sets the moderation status and drains the profile's notifications
// atomically.  Repeating the same decision is a no-op apart from the drain.
func (r *ProfileRepo) Decide(ctx context.Context, id uint64, status model.ModerationStatus) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var one int
	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM profiles WHERE id=? FOR UPDATE", id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE profiles SET moderation_status=? WHERE id=?", string(status), id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE profile_id=?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete removes the profile and its notifications in one transaction and
// returns the remote photo URLs it held so the caller can clean up objects.
func (r *ProfileRepo) Delete(ctx context.Context, id uint64) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var urls [model.PhotoSlots]sql.NullString
	q := fmt.Sprintf("SELECT %s,%s,%s,%s FROM profiles WHERE id=? FOR UPDATE",
		photoColumn(0, "url"), photoColumn(1, "url"), photoColumn(2, "url"), photoColumn(3, "url"))
	if err := tx.QueryRowContext(ctx, q, id).Scan(&urls[0], &urls[1], &urls[2], &urls[3]); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE profile_id=?", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE id=?", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	var out []string
	for _, u := range urls {
		if u.Valid && u.String != "" {
			out = append(out, u.String)
		}
	}
	return out, nil
}

// DeleteMembers removes every non-admin profile and their notifications.
func (r *ProfileRepo) DeleteMembers(ctx context.Context) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		"DELETE n FROM notifications n JOIN profiles p ON p.id=n.profile_id WHERE p.role<>'admin'"); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE role<>'admin'")
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return n, nil
}

// ProfilePatch lists the columns an update touches; nil means unchanged.
// Non-nil Fields members replace the stored value.
type ProfilePatch struct {
	Fields   model.ProfileFields
	Email    *string
	Phone    *string
	AltPhone *string
	Role     *model.Role
}

// Update applies the non-nil members of patch.
func (r *ProfileRepo) Update(ctx context.Context, id uint64, patch ProfilePatch) error {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if patch.Email != nil {
		set("email", strings.ToLower(strings.TrimSpace(*patch.Email)))
	}
	if patch.Phone != nil {
		set("phone", nullString(*patch.Phone))
	}
	if patch.AltPhone != nil {
		set("alt_phone", nullString(*patch.AltPhone))
	}
	if patch.Role != nil {
		set("role", string(*patch.Role))
	}
	for _, b := range fieldBindings(&patch.Fields) {
		if *b.ptr != nil {
			set(b.column, **b.ptr)
		}
	}
	if patch.Fields.Siblings != nil {
		set("siblings", nullJSON(patch.Fields.Siblings))
	}

	if len(sets) == 0 {
		ok, err := r.IDExists(ctx, id)
		if err == nil && !ok {
			err = ErrNotFound
		}
		return err
	}

	res, err := r.DB.ExecContext(ctx, "UPDATE profiles SET "+strings.Join(sets, ",")+" WHERE id=?", append(args, id)...)
	if err != nil {
		return mapDuplicate(err)
	}
	// MySQL reports changed rows, so an unchanged row needs the existence check.
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
