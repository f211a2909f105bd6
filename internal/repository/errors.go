// Package repository persists profiles and the operator inbox in MySQL.
// Sentinel values below let the service layer tell infrastructure failures
// apart from expected outcomes such as a taken email.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned when an insert collides on the primary key.
// The caller is expected to allocate a fresh id and retry.
var ErrDuplicateID = errors.New("profile id already taken")

// ErrEmailExists and ErrPhoneExists map unique-key violations on the
// contact columns.
var (
	ErrEmailExists = errors.New("email already exists")
	ErrPhoneExists = errors.New("phone already exists")
)

const mysqlDuplicateEntry = 1062

// mapDuplicate translates a MySQL duplicate-key error into the sentinel for
// the violated key and returns any other error unchanged.  Only the key name
// is inspected; the message also quotes the duplicate value.
func mapDuplicate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return err
	}
	switch key := duplicateKey(me.Message); {
	case key == "primary":
		return ErrDuplicateID
	case key == "uq_profiles_email":
		return ErrEmailExists
	case key == "uq_profiles_phone", key == "uq_profiles_alt_phone":
		return ErrPhoneExists
	}
	return err
}

// duplicateKey extracts the lower-cased index name from
// "Duplicate entry '...' for key 'profiles.uq_profiles_email'".  MySQL 8
// qualifies the name with the table, 5.7 does not.
func duplicateKey(msg string) string {
	const marker = "for key '"
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(msg[i+len(marker):], "'")
	if j := strings.LastIndex(key, "."); j >= 0 {
		key = key[j+1:]
	}
	return strings.ToLower(key)
}
