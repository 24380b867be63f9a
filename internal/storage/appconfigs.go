package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensheets/companion/internal/common"
	"github.com/opensheets/companion/internal/model"
)

// SaveAppConfig inserts or replaces a monitored source configuration.
func (s *SQLiteStorage) SaveAppConfig(ctx context.Context, config *model.AppConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if config == nil {
		return ErrNilRecord
	}
	if err := validateString(config.SourceID, "sourceID"); err != nil {
		return err
	}

	createdAt := config.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	keywords := config.Keywords
	if keywords == "" {
		keywords = "[]"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO app_configs (package_name, display_name, is_enabled, keywords, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, config.SourceID, config.DisplayName, config.Enabled, keywords, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save app config %s: %w", config.SourceID, err)
	}

	return nil
}

// SaveAppConfigs saves multiple configurations in one transaction. Used to
// seed the default bank list on first run.
func (s *SQLiteStorage) SaveAppConfigs(ctx context.Context, configs []model.AppConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO app_configs (package_name, display_name, is_enabled, keywords, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, config := range configs {
		if config.SourceID == "" {
			return fmt.Errorf("%w: sourceID", ErrEmptyString)
		}

		createdAt := config.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		keywords := config.Keywords
		if keywords == "" {
			keywords = "[]"
		}

		if _, err := stmt.ExecContext(ctx,
			config.SourceID, config.DisplayName, config.Enabled, keywords, createdAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to save app config %s: %w", config.SourceID, err)
		}
	}

	return tx.Commit()
}

// GetAppConfig looks up a source configuration by its stable identifier.
func (s *SQLiteStorage) GetAppConfig(ctx context.Context, sourceID string) (*model.AppConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sourceID, "sourceID"); err != nil {
		return nil, err
	}

	config, err := scanAppConfig(s.db.QueryRowContext(ctx, `
		SELECT package_name, display_name, is_enabled, keywords, created_at
		FROM app_configs WHERE package_name = ?
	`, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("app config %s: %w", sourceID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app config %s: %w", sourceID, err)
	}

	return config, nil
}

// ListAppConfigs returns all monitored sources ordered by display name.
func (s *SQLiteStorage) ListAppConfigs(ctx context.Context) ([]model.AppConfig, error) {
	return s.listAppConfigs(ctx, `
		SELECT package_name, display_name, is_enabled, keywords, created_at
		FROM app_configs ORDER BY display_name ASC
	`)
}

// ListEnabledAppConfigs returns only the enabled sources.
func (s *SQLiteStorage) ListEnabledAppConfigs(ctx context.Context) ([]model.AppConfig, error) {
	return s.listAppConfigs(ctx, `
		SELECT package_name, display_name, is_enabled, keywords, created_at
		FROM app_configs WHERE is_enabled = 1 ORDER BY display_name ASC
	`)
}

func (s *SQLiteStorage) listAppConfigs(ctx context.Context, query string) ([]model.AppConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list app configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var configs []model.AppConfig
	for rows.Next() {
		config, err := scanAppConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app config: %w", err)
		}
		configs = append(configs, *config)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate app configs: %w", err)
	}

	return configs, nil
}

// SetAppEnabled toggles monitoring for a source.
func (s *SQLiteStorage) SetAppEnabled(ctx context.Context, sourceID string, enabled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sourceID, "sourceID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE app_configs SET is_enabled = ? WHERE package_name = ?`, enabled, sourceID)
	if err != nil {
		return fmt.Errorf("failed to toggle app config %s: %w", sourceID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check toggle result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("app config %s: %w", sourceID, common.ErrNotFound)
	}

	return nil
}

func scanAppConfig(row rowScanner) (*model.AppConfig, error) {
	var (
		config    model.AppConfig
		createdAt int64
	)

	err := row.Scan(
		&config.SourceID,
		&config.DisplayName,
		&config.Enabled,
		&config.Keywords,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	config.CreatedAt = time.UnixMilli(createdAt)
	return &config, nil
}
