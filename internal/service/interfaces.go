// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/opensheets/companion/internal/model"
)

// Storage defines the contract for the persistence layer. All operations
// are atomic with respect to a single record.
type Storage interface {
	// Notification operations
	InsertNotification(ctx context.Context, record *model.NotificationRecord) error
	UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus, syncedAt *time.Time, syncErr *string) error
	GetNotification(ctx context.Context, id string) (*model.NotificationRecord, error)
	ListPending(ctx context.Context, limit int) ([]model.NotificationRecord, error)
	ListRecent(ctx context.Context, limit int) ([]model.NotificationRecord, error)
	CountByStatus(ctx context.Context, status model.SyncStatus) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	DeleteAllNotifications(ctx context.Context) error

	// App config operations
	SaveAppConfig(ctx context.Context, config *model.AppConfig) error
	SaveAppConfigs(ctx context.Context, configs []model.AppConfig) error
	GetAppConfig(ctx context.Context, sourceID string) (*model.AppConfig, error)
	ListAppConfigs(ctx context.Context) ([]model.AppConfig, error)
	ListEnabledAppConfigs(ctx context.Context) ([]model.AppConfig, error)
	SetAppEnabled(ctx context.Context, sourceID string, enabled bool) error

	// Sync log operations
	AppendSyncLog(ctx context.Context, entry *model.SyncLogEntry) error
	ListSyncLogs(ctx context.Context, limit int) ([]model.SyncLogEntry, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Collector is the remote API accepting captured transactions and managing
// device credentials. Implementations must return collector-specific errors
// that distinguish authorization failures from transport failures.
type Collector interface {
	Health(ctx context.Context) (*HealthInfo, error)
	VerifyToken(ctx context.Context, accessToken string) (*TokenInfo, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	Submit(ctx context.Context, accessToken string, record model.NotificationRecord) error
	SubmitBatch(ctx context.Context, accessToken string, records []model.NotificationRecord) ([]BatchItemResult, error)
}

// HealthInfo is the collector's unauthenticated identity probe response.
type HealthInfo struct {
	Status  string
	Name    string
	Version string
	Message string
}

// TokenInfo describes a verified access token.
type TokenInfo struct {
	TokenID   string
	TokenName string
}

// TokenPair is a fresh set of bearer credentials from a refresh exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// BatchItemResult reports the per-item outcome of a batch submission, in
// the same order the records were submitted.
type BatchItemResult struct {
	NotificationID string
	Error          string
	OK             bool
}

// Credentials is the opaque bearer credential state shared between the
// setup flow and the sync engine.
type Credentials struct {
	ServerURL    string
	AccessToken  string
	RefreshToken string
	TokenName    string
}

// Configured reports whether enough state exists to talk to the collector.
func (c Credentials) Configured() bool {
	return c.ServerURL != "" && c.AccessToken != ""
}

// CredentialStore is the narrow capability for credential persistence.
// Reads and writes go through this interface so ownership is explicit.
type CredentialStore interface {
	Get() (Credentials, error)
	Set(creds Credentials) error
	Clear() error
}

// RetryOptions configures retry behavior for network operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
