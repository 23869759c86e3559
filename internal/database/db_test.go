package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordAndQueryInvites(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	runID, err := db.StartRun(ctx, 100)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, db.RecordInvites(ctx, runID, 100, 1, "alice", []int64{11, 12, 13}))
	require.NoError(t, db.RecordInvites(ctx, runID, 100, 2, "bob", []int64{13, 14}))
	require.NoError(t, db.RecordInvites(ctx, runID, 200, 1, "alice", []int64{11}))
	require.NoError(t, db.RecordInvites(ctx, runID, 200, 1, "alice", nil))

	ids, err := db.InvitedUsers(ctx, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{11, 12, 13, 14}, ids)

	ids, err = db.InvitedUsers(ctx, 300)
	require.NoError(t, err)
	assert.Empty(t, ids)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, int64(100), stats[0].TargetID)
	assert.Equal(t, "alice", stats[0].Session)
	assert.Equal(t, 3, stats[0].Invited)
	assert.Equal(t, "bob", stats[1].Session)
	assert.Equal(t, 1, stats[1].Invited, "duplicate user for the same target is ignored")
	assert.False(t, stats[0].LastSeen.IsZero())
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first, err := db.StartRun(ctx, 100)
	require.NoError(t, err)
	second, err := db.StartRun(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(ctx, first, 25))

	runs, err := db.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]Run{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	require.NotNil(t, byID[first].FinishedAt)
	assert.Equal(t, 25, byID[first].Invited)
	assert.Nil(t, byID[second].FinishedAt)

	runs, err = db.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRequiresRun(t *testing.T) {
	db := openTestDB(t)
	err := db.RecordInvites(context.Background(), "missing", 1, 1, "alice", []int64{1})
	assert.Error(t, err)
}
