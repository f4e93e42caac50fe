package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the record store uses.  Set-valued fields
// are stored as their own tables keyed by (owner, member) so inserts have
// add-to-set semantics.  Money columns are DOUBLE so the stored values
// match the computed ones exactly.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS diners (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		fname VARCHAR(100) NOT NULL,
		lname VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(50) NOT NULL DEFAULT '',
		reservation_count INT NOT NULL DEFAULT 0,
		date_registered DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_diners_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS dining_tables (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		number INT NOT NULL,
		capacity INT NOT NULL DEFAULT 0,
		reservation_count INT NOT NULL DEFAULT 0,
		UNIQUE KEY uq_dining_tables_number (number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		diner_id BIGINT UNSIGNED NOT NULL,
		payment_id BIGINT UNSIGNED NULL,
		guests_count INT NOT NULL,
		table_count INT NOT NULL DEFAULT 0,
		date_reserved DATETIME NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'created',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_reservations_diner (diner_id),
		INDEX idx_reservations_date (date_reserved)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservation_tables (
		reservation_id BIGINT UNSIGNED NOT NULL,
		table_id BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (reservation_id, table_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS table_reservations (
		table_id BIGINT UNSIGNED NOT NULL,
		reservation_id BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (table_id, reservation_id),
		INDEX idx_table_reservations_reservation (reservation_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS diner_reservations (
		diner_id BIGINT UNSIGNED NOT NULL,
		reservation_id BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (diner_id, reservation_id),
		INDEX idx_diner_reservations_reservation (reservation_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGINT UNSIGNED PRIMARY KEY,
		guests_count INT NOT NULL,
		charge_per_head DOUBLE NOT NULL,
		deposit_percentage DOUBLE NOT NULL,
		total_amount DOUBLE NULL,
		deposit_fee DOUBLE NULL,
		date_of_payment DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
}

// Migrate creates missing tables.  It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
