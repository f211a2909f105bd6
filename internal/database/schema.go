package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ProfileFieldColumns are the optional descriptive columns of profiles, in
// the order the repository scans them.
var ProfileFieldColumns = []string{
	"first_name", "last_name", "gender", "date_of_birth", "time_of_birth",
	"place_of_birth", "marital_status", "height", "religion", "caste", "gotra",
	"rashi", "nakshatra", "mother_tongue", "education", "occupation",
	"annual_income", "city", "state", "country", "father_name",
	"father_occupation", "mother_name", "mother_occupation",
}

func profilesDDL() string {
	var b strings.Builder
	b.WriteString(`CREATE TABLE IF NOT EXISTS profiles (
  id INT UNSIGNED NOT NULL PRIMARY KEY,
  email VARCHAR(255) NOT NULL,
  phone VARCHAR(32) NULL,
  alt_phone VARCHAR(32) NULL,
  password_hash VARCHAR(255) NOT NULL,
  role ENUM('admin','member') NOT NULL DEFAULT 'member',
  moderation_status VARCHAR(16) NULL,
  reset_token_hash CHAR(64) NULL,
  reset_expires_at DATETIME NULL,
  verification_token_hash CHAR(64) NULL,
  verified_at DATETIME NULL,
`)
	for _, c := range ProfileFieldColumns {
		fmt.Fprintf(&b, "  %s VARCHAR(255) NULL,\n", c)
	}
	b.WriteString("  about TEXT NULL,\n  siblings JSON NULL,\n")
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(&b, "  photo%d_blob MEDIUMBLOB NULL,\n  photo%d_url VARCHAR(1024) NULL,\n  photo%d_ref VARCHAR(1024) NULL,\n", i, i, i)
	}
	b.WriteString(`  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  UNIQUE KEY uq_profiles_email (email),
  UNIQUE KEY uq_profiles_phone (phone),
  UNIQUE KEY uq_profiles_alt_phone (alt_phone),
  KEY idx_profiles_reset (reset_token_hash),
  KEY idx_profiles_verification (verification_token_hash)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`)
	return b.String()
}

const notificationsDDL = `CREATE TABLE IF NOT EXISTS notifications (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  profile_id INT UNSIGNED NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  KEY idx_notifications_profile (profile_id),
  CONSTRAINT fk_notifications_profile FOREIGN KEY (profile_id)
    REFERENCES profiles (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{profilesDDL(), notificationsDDL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
