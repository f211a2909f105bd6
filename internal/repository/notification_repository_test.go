package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListNotifications(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("FROM notifications n JOIN profiles p")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile_id", "created_at", "email", "first_name", "last_name"}).
			AddRow(uint64(1), uint64(123456), at, "a@b.c", "Asha", nil))

	list, err := NewNotificationRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(123456), list[0].ProfileID)
	assert.Equal(t, "Asha", *list[0].FirstName)
	assert.Nil(t, list[0].LastName)
}

func TestDismissUnknownNotification(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("DELETE FROM notifications WHERE id=?")).WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewNotificationRepo(db).DeleteByID(context.Background(), 3), ErrNotFound)
}
