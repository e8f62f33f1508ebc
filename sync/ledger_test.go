package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) (*SQLLedger, LedgerSettings) {
	t.Helper()
	settings := LedgerSettings{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "sync_status.db")}
	ledger, err := OpenLedger(settings)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger, settings
}

func TestLedgerRecord(t *testing.T) {
	ctx := context.Background()
	ledger, _ := openTestLedger(t)

	exists, err := ledger.Has(ctx, 12)
	require.NoError(t, err)
	assert.False(t, exists)

	entry, err := ledger.Get(ctx, 12)
	require.NoError(t, err)
	assert.Nil(t, entry)

	syncTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, ledger.Record(ctx, LedgerEntry{SourceID: 12, DestinationID: "DEMO-4", SyncTime: syncTime, Category: "Bug"}))

	exists, err = ledger.Has(ctx, 12)
	require.NoError(t, err)
	assert.True(t, exists)

	entry, err = ledger.Get(ctx, 12)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(12), entry.SourceID)
	assert.Equal(t, "DEMO-4", entry.DestinationID)
	assert.Equal(t, "Bug", entry.Category)
	assert.True(t, syncTime.Equal(entry.SyncTime), "expected %s but have %s", syncTime, entry.SyncTime)

	exists, err = ledger.Has(ctx, 13)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLedgerRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	ledger, _ := openTestLedger(t)

	require.NoError(t, ledger.Record(ctx, LedgerEntry{SourceID: 12, DestinationID: "DEMO-4", SyncTime: time.Now(), Category: "Bug"}))

	err := ledger.Record(ctx, LedgerEntry{SourceID: 12, DestinationID: "DEMO-5", SyncTime: time.Now(), Category: "Bug"})
	var duplicateErr *DuplicateKeyError
	require.ErrorAs(t, err, &duplicateErr)
	assert.Equal(t, int64(12), duplicateErr.SourceID)

	// the first entry is never overwritten
	entry, err := ledger.Get(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "DEMO-4", entry.DestinationID)
}

func TestLedgerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	ledger, settings := openTestLedger(t)

	require.NoError(t, ledger.Record(ctx, LedgerEntry{SourceID: 7, DestinationID: "DEMO-1", SyncTime: time.Now(), Category: "Feature Request"}))
	require.NoError(t, ledger.Close())

	reopened, err := OpenLedger(settings)
	require.NoError(t, err)
	defer reopened.Close()

	exists, err := reopened.Has(ctx, 7)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpenLedgerRejectsUnknownDriver(t *testing.T) {
	_, err := OpenLedger(LedgerSettings{Driver: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, `unsupported ledger driver "mysql"`)
}

func TestAppendDSNParam(t *testing.T) {
	assert.Equal(t, "sync.db?_busy_timeout=5000", appendDSNParam("sync.db", "_busy_timeout=5000"))
	assert.Equal(t, "file:sync.db?mode=rwc&_busy_timeout=5000", appendDSNParam("file:sync.db?mode=rwc", "_busy_timeout=5000"))
}

// TestPostgresLedger runs against a real database when TRACKSYNC_TEST_POSTGRES_DSN is set.
func TestPostgresLedger(t *testing.T) {
	dsn := os.Getenv("TRACKSYNC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRACKSYNC_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	ledger, err := OpenLedger(LedgerSettings{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer ledger.Close()

	sourceID := time.Now().UnixNano()
	require.NoError(t, ledger.Record(ctx, LedgerEntry{SourceID: sourceID, DestinationID: "DEMO-1", SyncTime: time.Now(), Category: "Bug"}))

	err = ledger.Record(ctx, LedgerEntry{SourceID: sourceID, DestinationID: "DEMO-2", SyncTime: time.Now(), Category: "Bug"})
	var duplicateErr *DuplicateKeyError
	assert.ErrorAs(t, err, &duplicateErr)

	_, err = ledger.db.ExecContext(ctx, `DELETE FROM synced_tickets WHERE mantis_id = $1`, sourceID)
	require.NoError(t, err)
}

func TestLedgerDuplicateDetectionIgnoresOtherConstraints(t *testing.T) {
	ledger, _ := openTestLedger(t)

	_, err := ledger.db.Exec(`INSERT INTO synced_tickets (mantis_id, jira_key, sync_time, category) VALUES (1, NULL, CURRENT_TIMESTAMP, 'Bug')`)
	require.Error(t, err)
	assert.False(t, ledger.dialect.isDuplicate(err))

	_, err = ledger.db.Exec(`INSERT INTO synced_tickets (mantis_id, jira_key, sync_time, category) VALUES (2, 'DEMO-2', CURRENT_TIMESTAMP, 'Bug')`)
	require.NoError(t, err)
	_, err = ledger.db.Exec(`INSERT INTO synced_tickets (mantis_id, jira_key, sync_time, category) VALUES (2, 'DEMO-3', CURRENT_TIMESTAMP, 'Bug')`)
	require.Error(t, err)
	assert.True(t, ledger.dialect.isDuplicate(err))
}
