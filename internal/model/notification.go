// Package model defines the core domain types shared across the application.
package model

import "time"

// SyncStatus tracks a captured notification's position in the sync lifecycle.
type SyncStatus string

// Valid sync statuses.
const (
	// SyncStatusPending means the record has not yet been delivered.
	SyncStatusPending SyncStatus = "PENDING_SYNC"
	// SyncStatusSynced means the server acknowledged the record.
	SyncStatusSynced SyncStatus = "SYNCED"
	// SyncStatusFailed means the last delivery attempt failed; the record
	// is picked up again on the next sync run.
	SyncStatusFailed SyncStatus = "SYNC_FAILED"
)

// Direction indicates whether money left or entered the account.
type Direction string

// Transaction directions.
const (
	DirectionExpense Direction = "Despesa"
	DirectionIncome  Direction = "Receita"
)

// ParsedTransaction holds whatever structured facts could be extracted from
// a notification's free text. Every field is independently optional; an
// unmatched field is nil, never an error.
type ParsedTransaction struct {
	Amount         *float64
	MerchantName   *string
	CardLastDigits *string
	Direction      *Direction
}

// NotificationRecord is one captured notification plus its parse result and
// sync state. Raw fields are immutable after capture; only the sync fields
// are updated afterwards, and only by the sync engine.
type NotificationRecord struct {
	NotificationTimestamp time.Time
	CaptureTimestamp      time.Time
	SyncTimestamp         *time.Time
	RawTitle              *string
	SyncError             *string
	ID                    string
	SourceID              string
	SourceDisplayName     string
	RawText               string
	SyncStatus            SyncStatus
	Parsed                ParsedTransaction
}
