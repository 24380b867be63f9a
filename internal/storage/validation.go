package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/opensheets/companion/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string cannot be empty")
	ErrNilRecord     = errors.New("record cannot be nil")
	ErrInvalidLimit  = errors.New("limit must be positive")
	ErrInvalidStatus = errors.New("invalid sync status")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, name)
	}
	return nil
}

func validateLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	return nil
}

func validateStatus(status model.SyncStatus) error {
	switch status {
	case model.SyncStatusPending, model.SyncStatusSynced, model.SyncStatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}

func validateRecord(record *model.NotificationRecord) error {
	if record == nil {
		return ErrNilRecord
	}
	if record.ID == "" {
		return fmt.Errorf("%w: record id", ErrEmptyString)
	}
	if record.SourceID == "" {
		return fmt.Errorf("%w: record source id", ErrEmptyString)
	}
	// Records with empty text are never created.
	if record.RawText == "" {
		return fmt.Errorf("%w: record text", ErrEmptyString)
	}
	return validateStatus(record.SyncStatus)
}
