package model

import "time"

// SyncLogType categorizes audit log entries.
type SyncLogType string

// Sync log entry types.
const (
	SyncLogSuccess SyncLogType = "SUCCESS"
	SyncLogPartial SyncLogType = "PARTIAL"
	SyncLogError   SyncLogType = "ERROR"
	SyncLogAuth    SyncLogType = "AUTH"
	SyncLogInfo    SyncLogType = "INFO"
)

// SyncLogEntry is one append-only audit record. Entries are never updated;
// they are removed only by the same bulk clear that removes notifications.
type SyncLogEntry struct {
	Timestamp      time.Time
	NotificationID *string
	Details        *string
	ID             string
	Type           SyncLogType
	Message        string
}
