package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

/* Schema migrations for the delivery log
 * The engine owns only this schema; everything else in the database
 * belongs to other services
 */

// Migration is one forward/rollback pair applied in version order
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus lists applied and pending migrations by name
type MigrationStatus struct {
	Applied []string
	Pending []string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_delivery_attempts",
		Up: `CREATE TABLE delivery_attempts (
			delivery_id     TEXT        NOT NULL,
			attempt_number  INT         NOT NULL,
			webhook_id      TEXT        NOT NULL,
			subscription_id TEXT        NOT NULL,
			success         BOOLEAN     NOT NULL,
			status_code     INT,
			response_body   TEXT        NOT NULL DEFAULT '',
			latency_ms      BIGINT      NOT NULL,
			error_message   TEXT        NOT NULL DEFAULT '',
			failure_class   TEXT        NOT NULL,
			recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (delivery_id, attempt_number)
		)`,
		Down: `DROP TABLE delivery_attempts`,
	},
	{
		Version: 2,
		Name:    "index_delivery_attempts_webhook",
		Up:      `CREATE INDEX idx_delivery_attempts_webhook ON delivery_attempts (webhook_id)`,
		Down:    `DROP INDEX idx_delivery_attempts_webhook`,
	},
}

// Migrator applies and rolls back the delivery log schema
type Migrator struct {
	DB *sql.DB
}

// NewMigrator creates a migrator over an open connection pool
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{DB: db}
}

// Up applies all pending migrations in version order
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}

	return nil
}

// Down rolls back the most recently applied migration
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if !applied[mig.Version] {
			continue
		}
		if err := m.rollback(ctx, mig); err != nil {
			return fmt.Errorf("rolling back migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		return nil
	}

	return fmt.Errorf("no applied migrations to roll back")
}

// Status reports applied and pending migrations
func (m *Migrator) Status(ctx context.Context) (MigrationStatus, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return MigrationStatus{}, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}

	var status MigrationStatus
	for _, mig := range migrations {
		if applied[mig.Version] {
			status.Applied = append(status.Applied, mig.Name)
		} else {
			status.Pending = append(status.Pending, mig.Name)
		}
	}

	return status, nil
}

// ensureVersionTable creates the bookkeeping table if missing
func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INT PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := m.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}

// appliedVersions returns the set of already-applied migration versions
func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.DB.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("selecting applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migration versions: %w", err)
	}

	return applied, nil
}

// apply runs one migration and its bookkeeping in a transaction
func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.Up); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		mig.Version, mig.Name,
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}

// rollback reverses one migration and its bookkeeping in a transaction
func (m *Migrator) rollback(ctx context.Context, mig Migration) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.Down); err != nil {
		return fmt.Errorf("executing rollback: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = $1",
		mig.Version,
	); err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}

	return tx.Commit()
}
