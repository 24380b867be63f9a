package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensheets/companion/internal/model"
)

// migrateTo applies migrations up to and including the given version.
func migrateTo(t *testing.T, store *SQLiteStorage, version int) {
	t.Helper()

	for _, migration := range migrations {
		if migration.Version > version {
			break
		}

		tx, err := store.db.Begin()
		require.NoError(t, err)
		require.NoError(t, migration.Up(tx))
		_, err = tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version))
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
	}
}

func TestMigrate_FreshDatabase(t *testing.T) {
	store := setupStore(t)

	version, err := store.schemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	version, err := store.schemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestMigrate_CarriesDataForwardFromOldSchema(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	migrateTo(t, store, 4)

	// Reads and writes against the old schema go through the retired
	// transaction-type column.
	record := testRecord("old-schema", time.Now().Truncate(time.Millisecond))
	require.NoError(t, store.InsertNotification(ctx, record))

	got, err := store.GetNotification(ctx, "old-schema")
	require.NoError(t, err)
	require.NotNil(t, got.Parsed.Direction)
	assert.Equal(t, model.DirectionExpense, *got.Parsed.Direction)

	// Migrating to the current version preserves the record under the
	// renamed column.
	require.NoError(t, store.Migrate(ctx))

	version, err := store.schemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	got, err = store.GetNotification(ctx, "old-schema")
	require.NoError(t, err)
	require.NotNil(t, got.Parsed.Direction)
	assert.Equal(t, model.DirectionExpense, *got.Parsed.Direction)
	require.NotNil(t, got.Parsed.Amount)
	assert.InDelta(t, 45.90, *got.Parsed.Amount, 0.001)
}

func TestMigrationVersionsAreSequential(t *testing.T) {
	for i, migration := range migrations {
		assert.Equal(t, i+1, migration.Version,
			"migration %q is out of order", migration.Description)
	}
}
