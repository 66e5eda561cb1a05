package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLogRecord(t *testing.T) {
	log := NewActionLog(setupTestDB(t), discardLogger(), false)

	err := log.Record(Action{
		Action:   ActionMove,
		Source:   "/incomplete/Artist - Album",
		Target:   "/not-owned/[2001] Artist - Album",
		Status:   StatusDone,
		Duration: 42 * time.Millisecond,
	})
	require.NoError(t, err)

	actions, err := log.Since(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, actions, 1)

	a := actions[0]
	assert.Equal(t, ActionMove, a.Action)
	assert.Equal(t, StatusDone, a.Status)
	assert.False(t, a.DryRun)
	assert.Equal(t, 42*time.Millisecond, a.Duration)
}

func TestActionLogDryRunFlag(t *testing.T) {
	log := NewActionLog(setupTestDB(t), discardLogger(), true)

	require.NoError(t, log.Record(Action{
		Action: ActionDelete,
		Source: "cleanup",
		Target: "/not-owned/Old Album",
		Status: StatusDone,
	}))

	actions, err := log.Since(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.True(t, actions[0].DryRun, "dry-run flag must be stamped on every record")
}

func TestActionLogVetoRecorded(t *testing.T) {
	log := NewActionLog(setupTestDB(t), discardLogger(), false)

	require.NoError(t, log.Record(Action{
		Action: ActionDelete,
		Source: "cleanup",
		Target: "/not-owned/Starred Album",
		Status: StatusVetoed,
		Detail: "album starred in navidrome",
	}))

	actions, err := log.Since(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, StatusVetoed, actions[0].Status)
}

func TestActionLogPrune(t *testing.T) {
	log := NewActionLog(setupTestDB(t), discardLogger(), false)

	require.NoError(t, log.Record(Action{
		Action:    ActionEnqueue,
		Source:    "sync",
		Target:    "peer/file.flac",
		Status:    StatusDone,
		StartedAt: time.Now().Add(-72 * time.Hour),
	}))
	require.NoError(t, log.Record(Action{
		Action: ActionEnqueue,
		Source: "sync",
		Target: "peer/other.flac",
		Status: StatusDone,
	}))

	n, err := log.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
