package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS notifications (
					id TEXT PRIMARY KEY NOT NULL,
					package_name TEXT NOT NULL,
					app_name TEXT NOT NULL,
					title TEXT,
					text TEXT NOT NULL,
					notification_timestamp INTEGER NOT NULL,
					capture_timestamp INTEGER NOT NULL,
					parsed_amount REAL,
					parsed_merchant_name TEXT,
					parsed_card_last_digits TEXT,
					parsed_transaction_type TEXT,
					sync_status TEXT NOT NULL,
					sync_timestamp INTEGER,
					sync_error TEXT
				)`,
				`CREATE INDEX idx_notifications_sync_status ON notifications(sync_status)`,
				`CREATE INDEX idx_notifications_capture_timestamp ON notifications(capture_timestamp)`,

				`CREATE TABLE IF NOT EXISTS app_configs (
					package_name TEXT PRIMARY KEY NOT NULL,
					display_name TEXT NOT NULL,
					is_enabled INTEGER NOT NULL DEFAULT 1,
					keywords TEXT NOT NULL DEFAULT '[]',
					created_at INTEGER NOT NULL
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add keywords settings",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS keywords_settings (
					id INTEGER PRIMARY KEY NOT NULL,
					expense_keywords TEXT NOT NULL,
					income_keywords TEXT NOT NULL
				)`,
				`INSERT OR IGNORE INTO keywords_settings (id, expense_keywords, income_keywords)
					VALUES (1,
					'compra,débito,pagamento,saque,transferência enviada,pix enviado,boleto,fatura,cobrança',
					'recebido,recebeu,depósito,transferência recebida,pix recebido,crédito,estorno,cashback')`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add trigger keywords column",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				ALTER TABLE keywords_settings
				ADD COLUMN trigger_keywords TEXT NOT NULL
				DEFAULT 'compra,R$,pix,transferência,débito,crédito,saque,pagamento,boleto,fatura'
			`)
			return err
		},
	},
	{
		Version:     4,
		Description: "Add sync log audit trail",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS sync_logs (
					id TEXT PRIMARY KEY NOT NULL,
					timestamp INTEGER NOT NULL,
					type TEXT NOT NULL,
					message TEXT NOT NULL,
					notification_id TEXT,
					details TEXT
				)
			`)
			return err
		},
	},
	{
		Version:     5,
		Description: "Retire per-kind keyword columns, rename transaction type to direction",
		Up: func(tx *sql.Tx) error {
			// SQLite can't drop columns in place; recreate and copy.
			queries := []string{
				`CREATE TABLE keywords_settings_new (
					id INTEGER PRIMARY KEY NOT NULL,
					trigger_keywords TEXT NOT NULL
				)`,
				`INSERT INTO keywords_settings_new (id, trigger_keywords)
					SELECT id, trigger_keywords FROM keywords_settings`,
				`DROP TABLE keywords_settings`,
				`ALTER TABLE keywords_settings_new RENAME TO keywords_settings`,

				`CREATE TABLE notifications_new (
					id TEXT PRIMARY KEY NOT NULL,
					package_name TEXT NOT NULL,
					app_name TEXT NOT NULL,
					title TEXT,
					text TEXT NOT NULL,
					notification_timestamp INTEGER NOT NULL,
					capture_timestamp INTEGER NOT NULL,
					parsed_amount REAL,
					parsed_merchant_name TEXT,
					parsed_card_last_digits TEXT,
					parsed_direction TEXT,
					sync_status TEXT NOT NULL,
					sync_timestamp INTEGER,
					sync_error TEXT
				)`,
				`INSERT INTO notifications_new (id, package_name, app_name, title, text,
					notification_timestamp, capture_timestamp, parsed_amount,
					parsed_merchant_name, parsed_card_last_digits, parsed_direction,
					sync_status, sync_timestamp, sync_error)
					SELECT id, package_name, app_name, title, text,
						notification_timestamp, capture_timestamp, parsed_amount,
						parsed_merchant_name, parsed_card_last_digits, parsed_transaction_type,
						sync_status, sync_timestamp, sync_error
					FROM notifications`,
				`DROP TABLE notifications`,
				`ALTER TABLE notifications_new RENAME TO notifications`,
				`CREATE INDEX idx_notifications_sync_status ON notifications(sync_status)`,
				`CREATE INDEX idx_notifications_capture_timestamp ON notifications(capture_timestamp)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

func (s *SQLiteStorage) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
