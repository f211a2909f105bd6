package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeVerificationOnce(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepo(db)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("SELECT id FROM profiles WHERE verification_token_hash=?")).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(777777)))
	mock.ExpectExec(q("UPDATE profiles SET verified_at=?, verification_token_hash=NULL WHERE id=? AND verification_token_hash=?")).
		WithArgs(at, uint64(777777), "h1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT id FROM profiles WHERE verification_token_hash=?")).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := repo.ConsumeVerification(context.Background(), "h1", at)
	require.NoError(t, err)
	assert.Equal(t, uint64(777777), id)

	_, err = repo.ConsumeVerification(context.Background(), "h1", at)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeVerificationLosesRace(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SELECT id FROM profiles WHERE verification_token_hash=?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(1)))
	mock.ExpectExec(q("UPDATE profiles SET verified_at=?")).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewProfileRepo(db).ConsumeVerification(context.Background(), "h", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByResetTokenHonoursExpiry(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("SELECT id FROM profiles WHERE reset_token_hash=? AND reset_expires_at>? LIMIT 1")).
		WithArgs("rh", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewProfileRepo(db).FindByResetToken(context.Background(), "rh", now)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteResetClearsToken(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE profiles SET password_hash=?, reset_token_hash=NULL, reset_expires_at=NULL WHERE id=? AND reset_token_hash=?")).
		WithArgs("newhash", uint64(5), "rh").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewProfileRepo(db).CompleteReset(context.Background(), 5, "rh", "newhash"))
	require.NoError(t, mock.ExpectationsWereMet())
}
