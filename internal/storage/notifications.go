package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/opensheets/companion/internal/common"
	"github.com/opensheets/companion/internal/model"
)

// directionColumn returns the column holding the parsed direction for the
// database's current schema version. Older databases kept it under the
// retired transaction-type name; reads must tolerate either.
func (s *SQLiteStorage) directionColumn(ctx context.Context) (string, error) {
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return "", err
	}
	if version >= 5 {
		return "parsed_direction", nil
	}
	return "parsed_transaction_type", nil
}

// InsertNotification persists a newly captured record.
func (s *SQLiteStorage) InsertNotification(ctx context.Context, record *model.NotificationRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	directionCol, err := s.directionColumn(ctx)
	if err != nil {
		return err
	}

	var direction *string
	if record.Parsed.Direction != nil {
		d := string(*record.Parsed.Direction)
		direction = &d
	}

	var syncTimestamp *int64
	if record.SyncTimestamp != nil {
		ms := record.SyncTimestamp.UnixMilli()
		syncTimestamp = &ms
	}

	query := fmt.Sprintf(`
		INSERT INTO notifications (
			id, package_name, app_name, title, text,
			notification_timestamp, capture_timestamp,
			parsed_amount, parsed_merchant_name, parsed_card_last_digits, %s,
			sync_status, sync_timestamp, sync_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, directionCol)

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.SourceID,
		record.SourceDisplayName,
		record.RawTitle,
		record.RawText,
		record.NotificationTimestamp.UnixMilli(),
		record.CaptureTimestamp.UnixMilli(),
		record.Parsed.Amount,
		record.Parsed.MerchantName,
		record.Parsed.CardLastDigits,
		direction,
		string(record.SyncStatus),
		syncTimestamp,
		record.SyncError,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("notification %s: %w", record.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert notification %s: %w", record.ID, err)
	}

	return nil
}

// UpdateSyncStatus transitions a record's sync state in a single atomic
// write. Only the sync engine calls this; raw fields stay immutable.
func (s *SQLiteStorage) UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus, syncedAt *time.Time, syncErr *string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateStatus(status); err != nil {
		return err
	}

	var syncTimestamp *int64
	if syncedAt != nil {
		ms := syncedAt.UnixMilli()
		syncTimestamp = &ms
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET sync_status = ?, sync_timestamp = ?, sync_error = ?
		WHERE id = ?
	`, string(status), syncTimestamp, syncErr, id)
	if err != nil {
		return fmt.Errorf("failed to update sync status for %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}

	return nil
}

// GetNotification retrieves a single record by ID.
func (s *SQLiteStorage) GetNotification(ctx context.Context, id string) (*model.NotificationRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	directionCol, err := s.directionColumn(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, package_name, app_name, title, text,
			notification_timestamp, capture_timestamp,
			parsed_amount, parsed_merchant_name, parsed_card_last_digits, %s,
			sync_status, sync_timestamp, sync_error
		FROM notifications WHERE id = ?
	`, directionCol)

	record, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification %s: %w", id, err)
	}

	return record, nil
}

// ListPending returns records awaiting delivery, oldest first. Both
// never-synced and previously failed records qualify; failed records are
// always retried, never abandoned by the engine.
func (s *SQLiteStorage) ListPending(ctx context.Context, limit int) ([]model.NotificationRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	directionCol, err := s.directionColumn(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, package_name, app_name, title, text,
			notification_timestamp, capture_timestamp,
			parsed_amount, parsed_merchant_name, parsed_card_last_digits, %s,
			sync_status, sync_timestamp, sync_error
		FROM notifications
		WHERE sync_status IN (?, ?)
		ORDER BY capture_timestamp ASC
		LIMIT ?
	`, directionCol)

	rows, err := s.db.QueryContext(ctx, query,
		string(model.SyncStatusPending), string(model.SyncStatusFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectNotifications(rows)
}

// ListRecent returns the most recently captured records, newest first.
func (s *SQLiteStorage) ListRecent(ctx context.Context, limit int) ([]model.NotificationRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	directionCol, err := s.directionColumn(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, package_name, app_name, title, text,
			notification_timestamp, capture_timestamp,
			parsed_amount, parsed_merchant_name, parsed_card_last_digits, %s,
			sync_status, sync_timestamp, sync_error
		FROM notifications
		ORDER BY capture_timestamp DESC
		LIMIT ?
	`, directionCol)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectNotifications(rows)
}

// CountByStatus returns the number of records in the given sync status.
func (s *SQLiteStorage) CountByStatus(ctx context.Context, status model.SyncStatus) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateStatus(status); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE sync_status = ?`,
		string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications by status: %w", err)
	}

	return count, nil
}

// CountSince returns the number of records synced at or after the given time.
func (s *SQLiteStorage) CountSince(ctx context.Context, since time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE sync_status = ? AND sync_timestamp >= ?
	`, string(model.SyncStatusSynced), since.UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count synced notifications: %w", err)
	}

	return count, nil
}

// DeleteAllNotifications is the user-initiated bulk clear. It removes the
// sync log in the same transaction; nothing else ever deletes either.
func (s *SQLiteStorage) DeleteAllNotifications(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_logs`); err != nil {
		return fmt.Errorf("failed to delete sync logs: %w", err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*model.NotificationRecord, error) {
	var (
		record                model.NotificationRecord
		notificationTimestamp int64
		captureTimestamp      int64
		syncTimestamp         *int64
		direction             *string
		status                string
	)

	err := row.Scan(
		&record.ID,
		&record.SourceID,
		&record.SourceDisplayName,
		&record.RawTitle,
		&record.RawText,
		&notificationTimestamp,
		&captureTimestamp,
		&record.Parsed.Amount,
		&record.Parsed.MerchantName,
		&record.Parsed.CardLastDigits,
		&direction,
		&status,
		&syncTimestamp,
		&record.SyncError,
	)
	if err != nil {
		return nil, err
	}

	record.NotificationTimestamp = time.UnixMilli(notificationTimestamp)
	record.CaptureTimestamp = time.UnixMilli(captureTimestamp)
	record.SyncStatus = model.SyncStatus(status)
	if syncTimestamp != nil {
		t := time.UnixMilli(*syncTimestamp)
		record.SyncTimestamp = &t
	}
	if direction != nil {
		d := model.Direction(*direction)
		record.Parsed.Direction = &d
	}

	return &record, nil
}

func collectNotifications(rows *sql.Rows) ([]model.NotificationRecord, error) {
	var records []model.NotificationRecord
	for rows.Next() {
		record, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return records, nil
}
