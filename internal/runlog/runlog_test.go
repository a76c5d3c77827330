package runlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UWCubeSat/found-integration-testing/internal/measure"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndListRuns(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	ok := measure.Result{
		Success:      true,
		NumEdges:     1200,
		DistanceM:    10378137.5,
		AltitudeM:    4000000.5,
		GroundTruthM: 10378137,
		ErrorM:       0.5,
		ErrorPercent: 4.8e-06,
	}
	require.NoError(t, db.RecordRun("run-a", "/tmp/run-a", "/tmp/run-a/horizon.png", ok))

	fail := measure.Failure("no edges detected")
	require.NoError(t, db.RecordRun("run-b", "/tmp/run-b", "/tmp/run-b/horizon.png", fail))

	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]RunRecord{}
	for _, r := range runs {
		byID[r.RunID] = r
	}

	got := byID["run-a"]
	assert.True(t, got.Result.Success)
	assert.Equal(t, 1200, got.Result.NumEdges)
	assert.InDelta(t, 10378137.5, got.Result.DistanceM, 1e-9)
	assert.Equal(t, "/tmp/run-a", got.RunDir)

	gotFail := byID["run-b"]
	assert.False(t, gotFail.Result.Success)
	assert.Equal(t, "no edges detected", gotFail.Result.Error)
}

func TestRecentRunsLimit(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, db.RecordRun(id, "/d/"+id, "/d/"+id+"/img.png", measure.Failure("x")))
	}

	runs, err := db.RecentRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	require.NoError(t, db.RecordRun("dup", "/d", "/d/i.png", measure.Failure("x")))
	err := db.RecordRun("dup", "/d", "/d/i.png", measure.Failure("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record run")
}
