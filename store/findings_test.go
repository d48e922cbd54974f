package store

import (
	"context"
	"testing"

	"github.com/c360studio/clausereview/model"
	"github.com/stretchr/testify/require"
)

func TestPutAndGetClauseFindings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	f := &model.ClauseFindings{ClauseID: "4.1"}
	f.AddScratchpad("notice period looks short relative to baseline")
	require.NoError(t, s.PutClauseFindings(ctx, task.ID, "4.1", f))

	got, err := s.GetClauseFindings(ctx, task.ID, "4.1")
	require.NoError(t, err)
	require.Equal(t, "4.1", got.ClauseID)
	require.Len(t, got.Scratchpad, 1)
}

func TestGetClauseFindingsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetClauseFindings(context.Background(), "task-1", "4.1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListClauseFindings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	require.NoError(t, s.PutClauseFindings(ctx, task.ID, "4.1", &model.ClauseFindings{ClauseID: "4.1"}))
	require.NoError(t, s.PutClauseFindings(ctx, task.ID, "6.2", &model.ClauseFindings{ClauseID: "6.2"}))

	all, err := s.ListClauseFindings(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Contains(t, all, "4.1")
	require.Contains(t, all, "6.2")
}
