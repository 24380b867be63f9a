// Package engine implements the durable sync pipeline: it drains pending
// notification records from storage, submits them to the remote collector,
// and transitions their status based on the outcome.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensheets/companion/internal/common"
	"github.com/opensheets/companion/internal/model"
	"github.com/opensheets/companion/internal/service"
)

// ErrAuthSuspended indicates sync is halted until the user re-authenticates.
var ErrAuthSuspended = errors.New("sync suspended until re-authentication")

// SyncEngine owns the retry/backoff and credential-refresh coordination
// for delivering captured records to the collector.
type SyncEngine struct {
	storage     service.Storage
	collector   service.Collector
	credentials service.CredentialStore
	backoff     *common.Backoff
	trigger     chan struct{}
	batchSize   int

	// runMu serializes sync runs: a run triggered while another is in
	// flight waits for it and then observes the already-updated records.
	runMu sync.Mutex

	suspendMu      sync.Mutex
	suspendedToken string
	suspended      bool
}

// Config holds configuration options for the sync engine.
type Config struct {
	BatchSize        int
	MinSweepInterval time.Duration
	MaxSweepInterval time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:        50,
		MinSweepInterval: 30 * time.Second,
		MaxSweepInterval: 15 * time.Minute,
	}
}

// New creates a sync engine with the default configuration.
func New(storage service.Storage, collector service.Collector, credentials service.CredentialStore) *SyncEngine {
	return NewWithConfig(storage, collector, credentials, DefaultConfig())
}

// NewWithConfig creates a sync engine with custom configuration.
func NewWithConfig(storage service.Storage, collector service.Collector, credentials service.CredentialStore, config Config) *SyncEngine {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MinSweepInterval <= 0 {
		config.MinSweepInterval = DefaultConfig().MinSweepInterval
	}
	if config.MaxSweepInterval < config.MinSweepInterval {
		config.MaxSweepInterval = DefaultConfig().MaxSweepInterval
	}

	return &SyncEngine{
		storage:     storage,
		collector:   collector,
		credentials: credentials,
		batchSize:   config.BatchSize,
		trigger:     make(chan struct{}, 1),
		backoff:     common.NewBackoff(config.MinSweepInterval, config.MaxSweepInterval, 2.0),
	}
}

// Trigger requests a sync run. Non-blocking: triggers arriving while a
// run is already requested or in flight coalesce into one.
func (e *SyncEngine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run drives the engine until the context is canceled: it serves on-demand
// triggers from the capture path and periodic catch-up sweeps whose
// interval grows on consecutive transport failures.
func (e *SyncEngine) Run(ctx context.Context) error {
	slog.Info("Sync engine started",
		"batch_size", e.batchSize,
		"sweep_interval", e.backoff.Min)

	timer := time.NewTimer(e.backoff.Current())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sync engine stopped")
			return ctx.Err()

		case <-e.trigger:
			e.sweep(ctx, timer)

		case <-timer.C:
			e.sweep(ctx, timer)
		}
	}
}

func (e *SyncEngine) sweep(ctx context.Context, timer *time.Timer) {
	result, err := e.RunOnce(ctx)

	switch {
	case err == nil:
		e.backoff.Reset()
	case errors.Is(err, ErrAuthSuspended), errors.Is(err, common.ErrNotConfigured):
		// Nothing to hammer; sweep again at the minimum interval and
		// wait for the user to reconnect.
		e.backoff.Reset()
	default:
		slog.Warn("Sync run failed", "error", err, "next_sweep_in", e.backoff.Current())
	}

	if result.Submitted > 0 || err != nil {
		slog.Debug("Sync run finished",
			"submitted", result.Submitted,
			"synced", result.Synced,
			"failed", result.Failed,
			"error", err)
	}

	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(e.backoff.Next())
}

// Result summarizes one sync run.
type Result struct {
	Submitted int
	Synced    int
	Failed    int
}

// RunOnce executes a single sync run over a snapshot of pending records.
// Runs are serialized; a concurrent caller blocks until the active run
// finishes and then takes its own snapshot.
func (e *SyncEngine) RunOnce(ctx context.Context) (Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	creds, err := e.credentials.Get()
	if err != nil {
		return Result{}, fmt.Errorf("failed to load credentials: %w", err)
	}
	if !creds.Configured() {
		return Result{}, common.ErrNotConfigured
	}

	if e.isSuspended(creds.AccessToken) {
		return Result{}, ErrAuthSuspended
	}

	records, err := e.storage.ListPending(ctx, e.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list pending records: %w", err)
	}
	if len(records) == 0 {
		return Result{}, nil
	}

	slog.Info("Starting sync run", "pending", len(records))

	return e.submitBatch(ctx, creds, records)
}

func (e *SyncEngine) submitBatch(ctx context.Context, creds service.Credentials, records []model.NotificationRecord) (Result, error) {
	results, err := e.submit(ctx, creds.AccessToken, records)

	if errors.Is(err, common.ErrUnauthorized) {
		refreshed, refreshErr := e.refreshCredentials(ctx, creds)
		if refreshErr != nil {
			// Hard auth failure: mark the batch, log it, and suspend
			// until the user re-authenticates.
			msg := refreshErr.Error()
			e.markAll(ctx, records, model.SyncStatusFailed, nil, &msg)
			e.appendLog(ctx, model.SyncLogAuth,
				fmt.Sprintf("credential refresh failed, sync suspended: %v", refreshErr), nil)
			e.suspend(creds.AccessToken)
			return Result{Submitted: len(records), Failed: len(records)},
				fmt.Errorf("%w: %v", common.ErrRefreshFailed, refreshErr)
		}

		// Retry the same batch once with the fresh credential.
		results, err = e.submit(ctx, refreshed.AccessToken, records)
	}

	if err != nil {
		msg := err.Error()
		e.markAll(ctx, records, model.SyncStatusFailed, nil, &msg)
		e.appendLog(ctx, model.SyncLogError,
			fmt.Sprintf("sync run failed for %d record(s): %v", len(records), err), nil)
		return Result{Submitted: len(records), Failed: len(records)}, err
	}

	return e.applyResults(ctx, records, results), nil
}

// submit chooses the endpoint: single-item for one record, batch otherwise.
func (e *SyncEngine) submit(ctx context.Context, accessToken string, records []model.NotificationRecord) ([]service.BatchItemResult, error) {
	if len(records) == 1 {
		if err := e.collector.Submit(ctx, accessToken, records[0]); err != nil {
			return nil, err
		}
		return []service.BatchItemResult{{NotificationID: records[0].ID, OK: true}}, nil
	}

	return e.collector.SubmitBatch(ctx, accessToken, records)
}

func (e *SyncEngine) refreshCredentials(ctx context.Context, creds service.Credentials) (service.Credentials, error) {
	if creds.RefreshToken == "" {
		return creds, errors.New("no refresh token available")
	}

	pair, err := e.collector.RefreshToken(ctx, creds.RefreshToken)
	if err != nil {
		return creds, err
	}

	creds.AccessToken = pair.AccessToken
	creds.RefreshToken = pair.RefreshToken
	if err := e.credentials.Set(creds); err != nil {
		return creds, fmt.Errorf("failed to save refreshed credentials: %w", err)
	}

	e.appendLog(ctx, model.SyncLogInfo, "device credentials refreshed", nil)
	slog.Info("Refreshed device credentials")
	return creds, nil
}

// applyResults marks every submitted record according to its reported
// outcome and appends the run's audit entry.
func (e *SyncEngine) applyResults(ctx context.Context, records []model.NotificationRecord, results []service.BatchItemResult) Result {
	now := time.Now()
	outcome := Result{Submitted: len(records)}

	byID := make(map[string]service.BatchItemResult, len(results))
	for _, r := range results {
		byID[r.NotificationID] = r
	}

	for _, record := range records {
		itemResult, ok := byID[record.ID]
		if ok && itemResult.OK {
			if err := e.storage.UpdateSyncStatus(ctx, record.ID, model.SyncStatusSynced, &now, nil); err != nil {
				slog.Error("Failed to mark record synced", "id", record.ID, "error", err)
				e.auditStatusFailure(ctx, record.ID, err)
				continue
			}
			outcome.Synced++
			continue
		}

		msg := itemResult.Error
		if !ok {
			msg = "record missing from batch response"
		} else if msg == "" {
			msg = "server reported failure"
		}
		if err := e.storage.UpdateSyncStatus(ctx, record.ID, model.SyncStatusFailed, nil, &msg); err != nil {
			slog.Error("Failed to mark record failed", "id", record.ID, "error", err)
			e.auditStatusFailure(ctx, record.ID, err)
			continue
		}
		outcome.Failed++
	}

	switch {
	case outcome.Failed == 0:
		e.appendLog(ctx, model.SyncLogSuccess,
			fmt.Sprintf("synced %d record(s)", outcome.Synced), nil)
	case outcome.Synced == 0:
		e.appendLog(ctx, model.SyncLogError,
			fmt.Sprintf("server rejected all %d record(s)", outcome.Failed), nil)
	default:
		e.appendLog(ctx, model.SyncLogPartial,
			fmt.Sprintf("synced %d record(s), %d failed", outcome.Synced, outcome.Failed), nil)
	}

	slog.Info("Sync run complete", "synced", outcome.Synced, "failed", outcome.Failed)
	return outcome
}

func (e *SyncEngine) markAll(ctx context.Context, records []model.NotificationRecord, status model.SyncStatus, syncedAt *time.Time, syncErr *string) {
	for _, record := range records {
		if err := e.storage.UpdateSyncStatus(ctx, record.ID, status, syncedAt, syncErr); err != nil {
			slog.Error("Failed to update record status", "id", record.ID, "status", status, "error", err)
			e.auditStatusFailure(ctx, record.ID, err)
		}
	}
}

// auditStatusFailure records a failed local status write in the audit
// log so it is visible outside the process logs. Best effort: appendLog
// already tolerates a failing store.
func (e *SyncEngine) auditStatusFailure(ctx context.Context, notificationID string, statusErr error) {
	e.appendLog(ctx, model.SyncLogError,
		fmt.Sprintf("failed to update local sync status: %v", statusErr), &notificationID)
}

func (e *SyncEngine) appendLog(ctx context.Context, logType model.SyncLogType, message string, notificationID *string) {
	entry := &model.SyncLogEntry{
		ID:             uuid.NewString(),
		Timestamp:      time.Now(),
		Type:           logType,
		Message:        message,
		NotificationID: notificationID,
	}
	if err := e.storage.AppendSyncLog(ctx, entry); err != nil {
		slog.Error("Failed to append sync log", "error", err)
	}
}

func (e *SyncEngine) suspend(token string) {
	e.suspendMu.Lock()
	defer e.suspendMu.Unlock()
	e.suspended = true
	e.suspendedToken = token
}

// isSuspended reports whether sync is halted. A credential change since
// suspension (the user reconnected) lifts it.
func (e *SyncEngine) isSuspended(currentToken string) bool {
	e.suspendMu.Lock()
	defer e.suspendMu.Unlock()

	if !e.suspended {
		return false
	}
	if currentToken != e.suspendedToken {
		e.suspended = false
		e.suspendedToken = ""
		return false
	}
	return true
}
