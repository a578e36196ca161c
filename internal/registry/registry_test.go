package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waferflow/statechart/internal/mailbox"
)

func TestInMemory_RegisterAndLatest(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory(nil)

	v1, err := r.Register(ctx, "op-1", mailbox.Snapshot{CurrentStates: []string{"op.idle"}})
	require.NoError(t, err)
	require.Equal(t, "v1", v1)

	v2, err := r.Register(ctx, "op-1", mailbox.Snapshot{CurrentStates: []string{"op.busy"}})
	require.NoError(t, err)
	require.Equal(t, "v2", v2)

	latest, err := r.Latest(ctx, "op-1")
	require.NoError(t, err)
	require.Equal(t, "v2", latest.Version)
	require.Equal(t, []string{"op.busy"}, latest.CurrentStates)

	first, err := r.Version(ctx, "op-1", "v1")
	require.NoError(t, err)
	require.Equal(t, []string{"op.idle"}, first.CurrentStates)
}

func TestInMemory_ListVersionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory(nil)
	_, _ = r.Register(ctx, "op-1", mailbox.Snapshot{})
	_, _ = r.Register(ctx, "op-1", mailbox.Snapshot{})
	_, _ = r.Register(ctx, "op-1", mailbox.Snapshot{})

	versions, err := r.ListVersions(ctx, "op-1")
	require.NoError(t, err)
	require.Equal(t, []string{"v3", "v2", "v1"}, versions)
}

func TestInMemory_UnknownInstance(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory(nil)
	_, err := r.Latest(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInMemory_ListInstancesSorted(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory(func() time.Time { return time.Unix(0, 0) })
	_, _ = r.Register(ctx, "b", mailbox.Snapshot{})
	_, _ = r.Register(ctx, "a", mailbox.Snapshot{})

	ids, err := r.ListInstances(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)
}
