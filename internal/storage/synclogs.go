package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/opensheets/companion/internal/model"
)

// AppendSyncLog writes one audit entry. The log is append-only; entries
// are removed only by DeleteAllNotifications.
func (s *SQLiteStorage) AppendSyncLog(ctx context.Context, entry *model.SyncLogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return ErrNilRecord
	}
	if err := validateString(entry.ID, "entry id"); err != nil {
		return err
	}

	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_logs (id, timestamp, type, message, notification_id, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		timestamp.UnixMilli(),
		string(entry.Type),
		entry.Message,
		entry.NotificationID,
		entry.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}

	return nil
}

// ListSyncLogs returns the most recent audit entries, newest first.
func (s *SQLiteStorage) ListSyncLogs(ctx context.Context, limit int) ([]model.SyncLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, type, message, notification_id, details
		FROM sync_logs ORDER BY timestamp DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.SyncLogEntry
	for rows.Next() {
		var (
			entry     model.SyncLogEntry
			timestamp int64
			logType   string
		)
		if err := rows.Scan(&entry.ID, &timestamp, &logType, &entry.Message, &entry.NotificationID, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		entry.Timestamp = time.UnixMilli(timestamp)
		entry.Type = model.SyncLogType(logType)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync logs: %w", err)
	}

	return entries, nil
}
