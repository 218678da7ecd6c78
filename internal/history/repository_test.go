package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testProject = "/home/dev/widget"

func newTestRepo(t *testing.T) LaunchRepository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.Launches()
}

func TestRecordLaunch_AssignsID(t *testing.T) {
	repo := newTestRepo(t)

	launch := &Launch{
		SessionID:   "sess-1",
		Project:     testProject,
		FirstPrompt: "fix the widget",
		Model:       "sonnet",
	}
	require.NoError(t, repo.RecordLaunch(launch))
	require.NotEmpty(t, launch.ID, "RecordLaunch should assign a UUID")
	require.False(t, launch.CreatedAt.IsZero())
	require.False(t, launch.LastUsedAt.IsZero())
}

func TestRecordLaunch_RequiresSessionID(t *testing.T) {
	repo := newTestRepo(t)
	require.Error(t, repo.RecordLaunch(&Launch{Project: testProject}))
}

func TestRecordLaunch_UpsertsOnSessionID(t *testing.T) {
	repo := newTestRepo(t)

	first := &Launch{SessionID: "sess-1", Project: testProject, Model: "sonnet"}
	require.NoError(t, repo.RecordLaunch(first))

	second := &Launch{
		SessionID:  "sess-1",
		Project:    testProject,
		Model:      "opus",
		LastUsedAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.RecordLaunch(second))

	launches, err := repo.List(testProject, 0)
	require.NoError(t, err)
	require.Len(t, launches, 1, "re-launching a session should update, not duplicate")
	require.Equal(t, "opus", launches[0].Model)
	require.Equal(t, first.ID, launches[0].ID, "original row identity survives the upsert")
}

func TestTouch_BumpsLastUsed(t *testing.T) {
	repo := newTestRepo(t)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, repo.RecordLaunch(&Launch{
		SessionID:  "sess-1",
		Project:    testProject,
		CreatedAt:  past,
		LastUsedAt: past,
	}))

	require.NoError(t, repo.Touch("sess-1"))

	launch, err := repo.MostRecent(testProject)
	require.NoError(t, err)
	require.True(t, launch.LastUsedAt.After(past), "Touch should advance last_used_at")
}

func TestTouch_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	require.ErrorIs(t, repo.Touch("sess-missing"), ErrLaunchNotFound)
}

func TestMostRecent_ReturnsLatest(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"sess-a", "sess-b", "sess-c"} {
		require.NoError(t, repo.RecordLaunch(&Launch{
			SessionID:  id,
			Project:    testProject,
			CreatedAt:  base,
			LastUsedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	launch, err := repo.MostRecent(testProject)
	require.NoError(t, err)
	require.Equal(t, "sess-c", launch.SessionID)
}

func TestMostRecent_ScopedToProject(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.RecordLaunch(&Launch{SessionID: "sess-other", Project: "/other/project"}))

	_, err := repo.MostRecent(testProject)
	require.ErrorIs(t, err, ErrLaunchNotFound)
}

func TestList_OrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordLaunch(&Launch{
			SessionID:  string(rune('a' + i)),
			Project:    testProject,
			CreatedAt:  base,
			LastUsedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	launches, err := repo.List(testProject, 3)
	require.NoError(t, err)
	require.Len(t, launches, 3)
	require.Equal(t, "e", launches[0].SessionID)
	require.Equal(t, "d", launches[1].SessionID)
	require.Equal(t, "c", launches[2].SessionID)
}

func TestList_EmptyProject(t *testing.T) {
	repo := newTestRepo(t)
	launches, err := repo.List(testProject, 0)
	require.NoError(t, err)
	require.Empty(t, launches)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.RecordLaunch(&Launch{SessionID: "sess-1", Project: testProject}))
	require.NoError(t, repo.Delete("sess-1"))

	_, err := repo.MostRecent(testProject)
	require.ErrorIs(t, err, ErrLaunchNotFound)

	require.ErrorIs(t, repo.Delete("sess-1"), ErrLaunchNotFound)
}

func TestLaunch_RoundTripTimestamps(t *testing.T) {
	repo := newTestRepo(t)

	created := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	used := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, repo.RecordLaunch(&Launch{
		SessionID:   "sess-1",
		Project:     testProject,
		FirstPrompt: "hello",
		CreatedAt:   created,
		LastUsedAt:  used,
	}))

	launch, err := repo.MostRecent(testProject)
	require.NoError(t, err)
	require.True(t, launch.CreatedAt.Equal(created))
	require.True(t, launch.LastUsedAt.Equal(used))
	require.Equal(t, "hello", launch.FirstPrompt)
}
