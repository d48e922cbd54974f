package store

import (
	"context"
	"testing"

	"github.com/c360studio/clausereview/model"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)
	require.Equal(t, model.PhaseCreated, task.Phase)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, task.ReviewingParty, got.ReviewingParty)
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTaskPhaseValidTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	updated, err := s.UpdateTaskPhase(ctx, task.ID, model.PhaseUploading, "")
	require.NoError(t, err)
	require.Equal(t, model.PhaseUploading, updated.Phase)
}

func TestUpdateTaskPhaseRejectsIllegalTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	_, err = s.UpdateTaskPhase(ctx, task.ID, model.PhaseComplete, "")
	require.Error(t, err)
}

func TestSetLatestSnapshotSeq(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	require.NoError(t, s.SetLatestSnapshotSeq(ctx, task.ID, 7))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.LatestSnapshotSeq)
}

func TestListTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, "Globex", "en", "nda-v1")
	require.NoError(t, err)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(ctx, task.ID))

	_, err = s.GetTask(ctx, task.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
