// Package capture consumes notification events pushed by the host and
// turns qualifying ones into persisted records.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensheets/companion/internal/common"
	"github.com/opensheets/companion/internal/model"
	"github.com/opensheets/companion/internal/parser"
	"github.com/opensheets/companion/internal/service"
)

// Event is one notification delivered by the host OS.
type Event struct {
	PostedAt time.Time `json:"postedAt"`
	Title    *string   `json:"title"`
	SourceID string    `json:"sourceId"`
	Text     string    `json:"text"`
}

// Triggerer is the one thing the capture path needs from the sync engine.
type Triggerer interface {
	Trigger()
}

// Service filters, parses, and persists incoming notification events.
// Events arrive over a channel so the host's calling convention stays
// decoupled from the capture task.
type Service struct {
	storage     service.Storage
	credentials service.CredentialStore
	extractor   *parser.Extractor
	sync        Triggerer
	events      chan Event
}

// NewService creates a capture service with the given queue depth.
func NewService(storage service.Storage, credentials service.CredentialStore, sync Triggerer, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Service{
		storage:     storage,
		credentials: credentials,
		extractor:   parser.NewExtractor(),
		sync:        sync,
		events:      make(chan Event, queueSize),
	}
}

// Events is the channel the host boundary pushes notification events onto.
func (s *Service) Events() chan<- Event {
	return s.events
}

// Run consumes events until the context is canceled. A failed capture is
// logged and dropped for that attempt; it is never fatal to the loop.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("Capture service started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Capture service stopped")
			return ctx.Err()

		case event := <-s.events:
			if err := s.Capture(ctx, event); err != nil {
				slog.Error("Failed to capture notification",
					"source", event.SourceID,
					"error", err)
			}
		}
	}
}

// Capture processes a single event: configuration check, keyword filter,
// extraction, insert, and a sync trigger. Events from unmonitored or
// disabled sources and events filtered by keywords are silently skipped.
func (s *Service) Capture(ctx context.Context, event Event) error {
	creds, err := s.credentials.Get()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if !creds.Configured() {
		return nil
	}

	if event.Text == "" {
		return nil
	}

	config, err := s.storage.GetAppConfig(ctx, event.SourceID)
	if errors.Is(err, common.ErrNotFound) {
		// Unmonitored source.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load app config: %w", err)
	}

	if !parser.ShouldCapture(*config, event.Title, event.Text) {
		return nil
	}

	parsed := s.extractor.Extract(event.SourceID, event.Title, event.Text)

	postedAt := event.PostedAt
	if postedAt.IsZero() {
		postedAt = time.Now()
	}

	record := &model.NotificationRecord{
		ID:                    uuid.NewString(),
		SourceID:              event.SourceID,
		SourceDisplayName:     config.DisplayName,
		RawTitle:              event.Title,
		RawText:               event.Text,
		NotificationTimestamp: postedAt,
		CaptureTimestamp:      time.Now(),
		Parsed:                parsed,
		SyncStatus:            model.SyncStatusPending,
	}

	if err := s.storage.InsertNotification(ctx, record); err != nil {
		s.auditStoreFailure(ctx, record.ID, err)
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	slog.Debug("Notification captured",
		"source", config.DisplayName,
		"id", record.ID,
		"has_amount", parsed.Amount != nil)

	s.sync.Trigger()
	return nil
}

// auditStoreFailure surfaces a local-store failure to the audit log. Best
// effort: if the log write fails too there is nowhere left to report.
func (s *Service) auditStoreFailure(ctx context.Context, notificationID string, captureErr error) {
	entry := &model.SyncLogEntry{
		ID:             uuid.NewString(),
		Timestamp:      time.Now(),
		Type:           model.SyncLogError,
		Message:        fmt.Sprintf("failed to persist captured notification: %v", captureErr),
		NotificationID: &notificationID,
	}
	if err := s.storage.AppendSyncLog(ctx, entry); err != nil {
		slog.Error("Failed to audit capture failure", "error", err)
	}
}

// SeedDefaultApps installs the built-in monitored app list when the config
// table is empty. Called once at startup; user toggles are never clobbered.
func SeedDefaultApps(ctx context.Context, storage service.Storage) error {
	existing, err := storage.ListAppConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list app configs: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	defaults := model.DefaultAppConfigs()
	if err := storage.SaveAppConfigs(ctx, defaults); err != nil {
		return fmt.Errorf("failed to seed default apps: %w", err)
	}

	slog.Info("Seeded default monitored apps", "count", len(defaults))
	return nil
}
