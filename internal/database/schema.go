package database

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are idempotent and applied in order inside one transaction.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id UUID PRIMARY KEY,
		external_id BIGINT,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		position TEXT NOT NULL DEFAULT 'sin asignar',
		profile_image_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT employees_external_id_key UNIQUE (external_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_employees_department ON employees (department)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id UUID PRIMARY KEY,
		ip TEXT NOT NULL,
		port INTEGER NOT NULL CHECK (port BETWEEN 1 AND 65535),
		machine_number INTEGER NOT NULL CHECK (machine_number BETWEEN 1 AND 254),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT devices_ip_port_machine_number_key UNIQUE (ip, port, machine_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_machine_number ON devices (machine_number)`,
	`CREATE TABLE IF NOT EXISTS attendances (
		id UUID PRIMARY KEY,
		machine_number INTEGER NOT NULL,
		user_id BIGINT NOT NULL,
		attendance_time TIMESTAMPTZ NOT NULL,
		access_mode TEXT NOT NULL DEFAULT '',
		attendance_status TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT attendances_dedup_key UNIQUE (machine_number, user_id, attendance_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendances_time ON attendances (attendance_time DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_attendances_user_id ON attendances (user_id)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
}

// Migrate creates the tables and unique indexes the repositories rely on.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
