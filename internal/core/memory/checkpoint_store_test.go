package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"opsdesk/internal/core/memory"
	"opsdesk/internal/domain"
)

func blob(s string) datatypes.JSON { return datatypes.JSON([]byte(s)) }

func TestPutLinksLineage(t *testing.T) {
	store := memory.NewCheckpointStore()
	ctx := context.Background()

	first, err := store.Put(ctx, "t1", "ns", "", blob(`{"n":1}`), blob(`{}`))
	require.NoError(t, err)
	second, err := store.Put(ctx, "t1", "ns", first, blob(`{"n":2}`), blob(`{}`))
	require.NoError(t, err)

	tuple, err := store.GetLatest(ctx, "t1", "ns", "")
	require.NoError(t, err)
	require.Equal(t, second, tuple.Checkpoint.CheckpointID)
	require.NotNil(t, tuple.Checkpoint.ParentCheckpointID)
	require.Equal(t, first, *tuple.Checkpoint.ParentCheckpointID)

	// lookup by explicit id still works
	tuple, err = store.GetLatest(ctx, "t1", "ns", first)
	require.NoError(t, err)
	require.Nil(t, tuple.Checkpoint.ParentCheckpointID)
	require.JSONEq(t, `{"n":1}`, string(tuple.Checkpoint.State))
}

func TestPutRejectsStaleParent(t *testing.T) {
	store := memory.NewCheckpointStore()
	ctx := context.Background()

	first, err := store.Put(ctx, "t1", "ns", "", blob(`{}`), blob(`{}`))
	require.NoError(t, err)
	_, err = store.Put(ctx, "t1", "ns", first, blob(`{}`), blob(`{}`))
	require.NoError(t, err)

	// a second writer still holding the old head loses the race
	_, err = store.Put(ctx, "t1", "ns", first, blob(`{}`), blob(`{}`))
	require.ErrorIs(t, err, domain.ErrStaleParent)

	// starting a new lineage on a populated thread is also stale
	_, err = store.Put(ctx, "t1", "ns", "", blob(`{}`), blob(`{}`))
	require.ErrorIs(t, err, domain.ErrStaleParent)
}

func TestNamespacesAreIndependent(t *testing.T) {
	store := memory.NewCheckpointStore()
	ctx := context.Background()

	_, err := store.Put(ctx, "t1", "a", "", blob(`{"ns":"a"}`), blob(`{}`))
	require.NoError(t, err)
	_, err = store.Put(ctx, "t1", "b", "", blob(`{"ns":"b"}`), blob(`{}`))
	require.NoError(t, err)

	tuple, err := store.GetLatest(ctx, "t1", "a", "")
	require.NoError(t, err)
	require.JSONEq(t, `{"ns":"a"}`, string(tuple.Checkpoint.State))

	_, err = store.GetLatest(ctx, "t1", "c", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPendingWritesTravelWithCheckpoint(t *testing.T) {
	store := memory.NewCheckpointStore()
	ctx := context.Background()

	id, err := store.Put(ctx, "t1", "ns", "", blob(`{}`), blob(`{}`))
	require.NoError(t, err)
	require.NoError(t, store.PutWrites(ctx, "t1", "ns", id, "step_a", blob(`{"a":1}`)))
	require.NoError(t, store.PutWrites(ctx, "t1", "ns", id, "step_b", blob(`{"b":2}`)))

	tuple, err := store.GetLatest(ctx, "t1", "ns", "")
	require.NoError(t, err)
	require.Len(t, tuple.PendingWrites, 2)
	require.Equal(t, "step_a", tuple.PendingWrites[0].StepID)
	require.Equal(t, "step_b", tuple.PendingWrites[1].StepID)

	// writes belong to their checkpoint, not to the thread head
	next, err := store.Put(ctx, "t1", "ns", id, blob(`{}`), blob(`{}`))
	require.NoError(t, err)
	tuple, err = store.GetLatest(ctx, "t1", "ns", "")
	require.NoError(t, err)
	require.Equal(t, next, tuple.Checkpoint.CheckpointID)
	require.Empty(t, tuple.PendingWrites)
}

func TestListNewestFirst(t *testing.T) {
	store := memory.NewCheckpointStore()
	ctx := context.Background()

	var last string
	for i := 0; i < 5; i++ {
		id, err := store.Put(ctx, "t1", "ns", last, blob(`{}`), blob(`{}`))
		require.NoError(t, err)
		last = id
	}

	all, err := store.List(ctx, "t1", "ns", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, last, all[0].CheckpointID)

	limited, err := store.List(ctx, "t1", "ns", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, last, limited[0].CheckpointID)
}

func TestDeleteThreadRemovesEverything(t *testing.T) {
	store := memory.NewCheckpointStore()
	ctx := context.Background()

	id, err := store.Put(ctx, "t1", "ns", "", blob(`{}`), blob(`{}`))
	require.NoError(t, err)
	require.NoError(t, store.PutWrites(ctx, "t1", "ns", id, "step", blob(`{}`)))
	_, err = store.Put(ctx, "t2", "ns", "", blob(`{}`), blob(`{}`))
	require.NoError(t, err)

	require.NoError(t, store.DeleteThread(ctx, "t1"))

	_, err = store.GetLatest(ctx, "t1", "ns", "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// other threads untouched
	_, err = store.GetLatest(ctx, "t2", "ns", "")
	require.NoError(t, err)
}
