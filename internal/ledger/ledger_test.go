package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

func TestReserve_ExclusiveWithinTTL(t *testing.T) {
	l := New(DefaultTTL)

	require.True(t, l.Reserve(7, 1, 0))
	assert.False(t, l.Reserve(7, 2, 5), "second agent must not claim a live reservation")
	assert.True(t, l.IsReservedByOther(7, 2, 5))
	assert.False(t, l.IsReservedByOther(7, 1, 5), "own reservation is not another's")

	r, ok := l.Holder(7, 5)
	require.True(t, ok)
	assert.Equal(t, core.AgentID(1), r.Agent)
	assert.Equal(t, 0, r.Created)
}

func TestReserve_RefreshOwn(t *testing.T) {
	l := New(DefaultTTL)
	require.True(t, l.Reserve(7, 1, 0))
	require.True(t, l.Reserve(7, 1, 15))

	r, ok := l.Holder(7, 30)
	require.True(t, ok, "refreshed claim should still be live at tick 30")
	assert.Equal(t, 15, r.Created)
}

func TestExpiry_AtTTL(t *testing.T) {
	l := New(DefaultTTL)
	require.True(t, l.Reserve(7, 1, 0))

	assert.True(t, l.IsReservedByOther(7, 2, 19))
	assert.False(t, l.IsReservedByOther(7, 2, 20), "claim made at tick 0 expires at tick 20")

	assert.Equal(t, 1, l.Purge(20))
	assert.Equal(t, 0, l.Len())

	assert.True(t, l.Reserve(7, 2, 20))
}

func TestPurge_KeepsLive(t *testing.T) {
	l := New(10)
	l.Reserve(1, 1, 0)
	l.Reserve(2, 2, 5)
	l.Reserve(3, 3, 9)

	assert.Equal(t, 1, l.Purge(10))
	assert.Equal(t, 2, l.Len())

	_, ok := l.Holder(1, 10)
	assert.False(t, ok)
	_, ok = l.Holder(3, 10)
	assert.True(t, ok)
}

func TestRelease(t *testing.T) {
	l := New(DefaultTTL)
	l.Reserve(1, 4, 0)
	l.Reserve(2, 4, 0)
	l.Reserve(3, 5, 0)

	l.Release(3)
	assert.False(t, l.IsReservedByOther(3, 1, 0))

	freed := l.ReleaseAgent(4)
	assert.Equal(t, []core.ShelfID{1, 2}, freed)
	assert.Equal(t, 0, l.Len())
}

func TestNew_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(0).TTL())
	assert.Equal(t, 5, New(5).TTL())
}
