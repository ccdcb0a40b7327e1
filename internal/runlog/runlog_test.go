package runlog

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/receivia/arclear/internal/testing"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testutil.NewTestDB(t, "runlog")
	t.Cleanup(cleanup)

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestRunLifecycle(t *testing.T) {
	repo := newRepo(t)

	id, err := repo.StartRun("1000,2000")
	require.NoError(t, err)

	run, err := repo.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, RunRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, repo.FinishRun(id, RunFinished))

	run, err = repo.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, RunFinished, run.Status)
	require.NotNil(t, run.FinishedAt)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestStageEvents(t *testing.T) {
	repo := newRepo(t)

	id, err := repo.StartRun("1000")
	require.NoError(t, err)

	repo.RecordStage(id, "1000", "items_exported", StatusOK, "")
	repo.RecordStage(id, "1000", "items_converted", StatusFailed, "column mismatch")

	events, err := repo.StageEvents(id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "items_exported", events[0].Stage)
	assert.Equal(t, StatusOK, events[0].Status)
	assert.Equal(t, "column mismatch", events[1].Detail)
}

func TestLatestRunPicksNewest(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.StartRun("1000")
	require.NoError(t, err)
	second, err := repo.StartRun("2000")
	require.NoError(t, err)

	run, err := repo.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, second, run.ID)
	assert.Equal(t, "2000", run.Entities)
}

func TestLatestRunEmpty(t *testing.T) {
	repo := newRepo(t)

	run, err := repo.LatestRun()
	require.NoError(t, err)
	assert.Nil(t, run)
}
