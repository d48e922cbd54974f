package store

import (
	"context"
	"testing"

	"github.com/c360studio/clausereview/model"
	"github.com/stretchr/testify/require"
)

func TestPutAndGetLatestSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	require.NoError(t, s.PutSnapshot(ctx, &model.MachineSnapshot{TaskID: task.ID, Seq: 0, Node: model.NodeSetup}))
	require.NoError(t, s.PutSnapshot(ctx, &model.MachineSnapshot{TaskID: task.ID, Seq: 1, Node: model.NodePlan}))
	require.NoError(t, s.PutSnapshot(ctx, &model.MachineSnapshot{TaskID: task.ID, Seq: 2, Node: model.NodeClauseContext}))

	latest, err := s.LatestSnapshot(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), latest.Seq)
	require.Equal(t, model.NodeClauseContext, latest.Node)
}

func TestLatestSnapshotNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LatestSnapshot(context.Background(), "task-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetSnapshotBySeq(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	require.NoError(t, s.PutSnapshot(ctx, &model.MachineSnapshot{TaskID: task.ID, Seq: 0, Node: model.NodeSetup}))
	require.NoError(t, s.PutSnapshot(ctx, &model.MachineSnapshot{TaskID: task.ID, Seq: 5, Node: model.NodeFinalize}))

	snap, err := s.GetSnapshot(ctx, task.ID, 5)
	require.NoError(t, err)
	require.Equal(t, model.NodeFinalize, snap.Node)
}

func TestPruneSnapshotsKeepsHistoryLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "Acme Corp", "en", "nda-v1")
	require.NoError(t, err)

	for i := int64(0); i < snapshotHistoryLimit+5; i++ {
		require.NoError(t, s.PutSnapshot(ctx, &model.MachineSnapshot{TaskID: task.ID, Seq: i, Node: model.NodeClauseAnalyze}))
	}

	require.NoError(t, s.PruneSnapshots(ctx, task.ID))

	keys, err := s.snapshotKeysForTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, keys, snapshotHistoryLimit)
}
