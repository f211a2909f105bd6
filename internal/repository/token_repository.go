package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// The credential tokens live on the profile row as SHA-256 hex digests; the
// raw values are never stored.

// SetResetToken stores a reset token hash and its expiry.
func (r *ProfileRepo) SetResetToken(ctx context.Context, id uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE profiles SET reset_token_hash=?, reset_expires_at=? WHERE id=?",
		tokenHash, exp.UTC(), id)
	return err
}

// FindByResetToken returns the profile holding an unexpired reset token.
func (r *ProfileRepo) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM profiles WHERE reset_token_hash=? AND reset_expires_at>? LIMIT 1",
		tokenHash, now.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// CompleteReset swaps the password hash and clears the reset token, provided
// the token has not been used concurrently.
func (r *ProfileRepo) CompleteReset(ctx context.Context, id uint64, tokenHash, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE profiles SET password_hash=?, reset_token_hash=NULL, reset_expires_at=NULL WHERE id=? AND reset_token_hash=?",
		passwordHash, id, tokenHash)
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

// SetVerificationToken replaces the pending verification token.
func (r *ProfileRepo) SetVerificationToken(ctx context.Context, id uint64, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE profiles SET verification_token_hash=? WHERE id=?", tokenHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeVerification marks the owner of tokenHash verified and clears the
// token, so a second call with the same token finds nothing.
func (r *ProfileRepo) ConsumeVerification(ctx context.Context, tokenHash string, at time.Time) (uint64, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM profiles WHERE verification_token_hash=? LIMIT 1", tokenHash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE profiles SET verified_at=?, verification_token_hash=NULL WHERE id=? AND verification_token_hash=?",
		at.UTC(), id, tokenHash)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}
