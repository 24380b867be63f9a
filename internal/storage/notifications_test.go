package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensheets/companion/internal/common"
	"github.com/opensheets/companion/internal/model"
)

func setupStore(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func testRecord(id string, capturedAt time.Time) *model.NotificationRecord {
	amount := 45.90
	merchant := "PADARIA CENTRAL"
	card := "1234"
	direction := model.DirectionExpense
	title := "Nubank"

	return &model.NotificationRecord{
		ID:                    id,
		SourceID:              "com.nu.production",
		SourceDisplayName:     "Nubank",
		RawTitle:              &title,
		RawText:               "Compra de R$ 45,90 aprovada em PADARIA CENTRAL para cartão final 1234",
		NotificationTimestamp: capturedAt.Add(-time.Second),
		CaptureTimestamp:      capturedAt,
		SyncStatus:            model.SyncStatusPending,
		Parsed: model.ParsedTransaction{
			Amount:         &amount,
			MerchantName:   &merchant,
			CardLastDigits: &card,
			Direction:      &direction,
		},
	}
}

func TestInsertAndGetNotification(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	capturedAt := time.Now().Truncate(time.Millisecond)
	record := testRecord("n1", capturedAt)
	require.NoError(t, store.InsertNotification(ctx, record))

	got, err := store.GetNotification(ctx, "n1")
	require.NoError(t, err)

	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.SourceID, got.SourceID)
	assert.Equal(t, record.SourceDisplayName, got.SourceDisplayName)
	require.NotNil(t, got.RawTitle)
	assert.Equal(t, *record.RawTitle, *got.RawTitle)
	assert.Equal(t, record.RawText, got.RawText)
	assert.Equal(t, model.SyncStatusPending, got.SyncStatus)
	assert.Equal(t, capturedAt.UnixMilli(), got.CaptureTimestamp.UnixMilli())
	assert.Nil(t, got.SyncTimestamp)
	assert.Nil(t, got.SyncError)

	require.NotNil(t, got.Parsed.Amount)
	assert.InDelta(t, 45.90, *got.Parsed.Amount, 0.001)
	require.NotNil(t, got.Parsed.MerchantName)
	assert.Equal(t, "PADARIA CENTRAL", *got.Parsed.MerchantName)
	require.NotNil(t, got.Parsed.CardLastDigits)
	assert.Equal(t, "1234", *got.Parsed.CardLastDigits)
	require.NotNil(t, got.Parsed.Direction)
	assert.Equal(t, model.DirectionExpense, *got.Parsed.Direction)
}

func TestInsertNotification_DuplicateID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	capturedAt := time.Now()
	require.NoError(t, store.InsertNotification(ctx, testRecord("n1", capturedAt)))

	err := store.InsertNotification(ctx, testRecord("n1", capturedAt))
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	// The original row survives the rejected insert.
	got, err := store.GetNotification(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, capturedAt.UnixMilli(), got.CaptureTimestamp.UnixMilli())
}

func TestInsertNotification_AllParseFieldsOptional(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	record := &model.NotificationRecord{
		ID:                    "bare",
		SourceID:              "com.example.app",
		SourceDisplayName:     "Example",
		RawText:               "mensagem sem valores",
		NotificationTimestamp: time.Now(),
		CaptureTimestamp:      time.Now(),
		SyncStatus:            model.SyncStatusPending,
	}
	require.NoError(t, store.InsertNotification(ctx, record))

	got, err := store.GetNotification(ctx, "bare")
	require.NoError(t, err)
	assert.Nil(t, got.Parsed.Amount)
	assert.Nil(t, got.Parsed.MerchantName)
	assert.Nil(t, got.Parsed.CardLastDigits)
	assert.Nil(t, got.Parsed.Direction)
	assert.Nil(t, got.RawTitle)
}

func TestGetNotification_NotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetNotification(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateSyncStatus(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertNotification(ctx, testRecord("n1", time.Now())))

	syncedAt := time.Now().Truncate(time.Millisecond)
	require.NoError(t, store.UpdateSyncStatus(ctx, "n1", model.SyncStatusSynced, &syncedAt, nil))

	got, err := store.GetNotification(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSynced, got.SyncStatus)
	require.NotNil(t, got.SyncTimestamp)
	assert.Equal(t, syncedAt.UnixMilli(), got.SyncTimestamp.UnixMilli())
	assert.Nil(t, got.SyncError)
}

func TestUpdateSyncStatus_FailureKeepsError(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertNotification(ctx, testRecord("n1", time.Now())))

	reason := "server rejected: bad token"
	require.NoError(t, store.UpdateSyncStatus(ctx, "n1", model.SyncStatusFailed, nil, &reason))

	got, err := store.GetNotification(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusFailed, got.SyncStatus)
	require.NotNil(t, got.SyncError)
	assert.Equal(t, reason, *got.SyncError)

	// A later successful sync clears the stored error.
	syncedAt := time.Now()
	require.NoError(t, store.UpdateSyncStatus(ctx, "n1", model.SyncStatusSynced, &syncedAt, nil))

	got, err = store.GetNotification(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSynced, got.SyncStatus)
	assert.Nil(t, got.SyncError)
}

func TestUpdateSyncStatus_NotFound(t *testing.T) {
	store := setupStore(t)

	err := store.UpdateSyncStatus(context.Background(), "missing", model.SyncStatusSynced, nil, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListPending(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Millisecond)

	// Out-of-order inserts; the failed record is oldest and must come back
	// first alongside the pending ones.
	newest := testRecord("newest", base.Add(2*time.Second))
	require.NoError(t, store.InsertNotification(ctx, newest))

	oldest := testRecord("oldest-failed", base)
	oldest.SyncStatus = model.SyncStatusFailed
	require.NoError(t, store.InsertNotification(ctx, oldest))

	middle := testRecord("middle", base.Add(time.Second))
	require.NoError(t, store.InsertNotification(ctx, middle))

	synced := testRecord("already-synced", base.Add(3*time.Second))
	synced.SyncStatus = model.SyncStatusSynced
	require.NoError(t, store.InsertNotification(ctx, synced))

	records, err := store.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "oldest-failed", records[0].ID)
	assert.Equal(t, "middle", records[1].ID)
	assert.Equal(t, "newest", records[2].ID)
}

func TestListPending_RespectsLimit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		record := testRecord(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.InsertNotification(ctx, record))
	}

	records, err := store.ListPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestListRecent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Millisecond)
	require.NoError(t, store.InsertNotification(ctx, testRecord("old", base)))
	require.NoError(t, store.InsertNotification(ctx, testRecord("new", base.Add(time.Minute))))

	records, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, "old", records[1].ID)
}

func TestCountByStatus(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, status := range []model.SyncStatus{
		model.SyncStatusPending,
		model.SyncStatusPending,
		model.SyncStatusSynced,
		model.SyncStatusFailed,
	} {
		record := testRecord(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		record.SyncStatus = status
		require.NoError(t, store.InsertNotification(ctx, record))
	}

	pending, err := store.CountByStatus(ctx, model.SyncStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	synced, err := store.CountByStatus(ctx, model.SyncStatusSynced)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	failed, err := store.CountByStatus(ctx, model.SyncStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

func TestCountSince(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Millisecond)
	cutoff := now.Add(-time.Hour)

	recent := testRecord("recent", now)
	require.NoError(t, store.InsertNotification(ctx, recent))
	require.NoError(t, store.UpdateSyncStatus(ctx, "recent", model.SyncStatusSynced, &now, nil))

	old := testRecord("old", now.Add(-2*time.Hour))
	require.NoError(t, store.InsertNotification(ctx, old))
	oldSync := now.Add(-2 * time.Hour)
	require.NoError(t, store.UpdateSyncStatus(ctx, "old", model.SyncStatusSynced, &oldSync, nil))

	stillPending := testRecord("pending", now)
	require.NoError(t, store.InsertNotification(ctx, stillPending))

	count, err := store.CountSince(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteAllNotifications(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertNotification(ctx, testRecord("n1", time.Now())))
	require.NoError(t, store.AppendSyncLog(ctx, &model.SyncLogEntry{
		ID:        "log1",
		Timestamp: time.Now(),
		Type:      model.SyncLogInfo,
		Message:   "test entry",
	}))

	require.NoError(t, store.DeleteAllNotifications(ctx))

	pending, err := store.CountByStatus(ctx, model.SyncStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	logs, err := store.ListSyncLogs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestDeleteAllNotifications_KeepsAppConfigs(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAppConfig(ctx, &model.AppConfig{
		SourceID:    "com.nu.production",
		DisplayName: "Nubank",
		Keywords:    "[]",
		Enabled:     true,
		CreatedAt:   time.Now(),
	}))
	require.NoError(t, store.InsertNotification(ctx, testRecord("n1", time.Now())))

	require.NoError(t, store.DeleteAllNotifications(ctx))

	configs, err := store.ListAppConfigs(ctx)
	require.NoError(t, err)
	assert.Len(t, configs, 1)
}

func TestInsertNotification_Validation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	t.Run("nil record", func(t *testing.T) {
		assert.ErrorIs(t, store.InsertNotification(ctx, nil), ErrNilRecord)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		record := testRecord("n1", time.Now())
		record.RawText = ""
		assert.ErrorIs(t, store.InsertNotification(ctx, record), ErrEmptyString)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		record := testRecord("n1", time.Now())
		record.SyncStatus = "UNKNOWN"
		assert.ErrorIs(t, store.InsertNotification(ctx, record), ErrInvalidStatus)
	})
}

func TestListPending_InvalidLimit(t *testing.T) {
	store := setupStore(t)

	_, err := store.ListPending(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = store.ListPending(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
