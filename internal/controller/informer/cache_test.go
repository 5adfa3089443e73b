package informer

import (
	"testing"

	"collectivewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCache_GetAbsent(t *testing.T) {
	c := NewSnapshotCache()
	entry, ok := c.Get(model.TypeHost, "H1")
	assert.False(t, ok)
	assert.Nil(t, entry)
}

func TestSnapshotCache_PutOverwrites(t *testing.T) {
	c := NewSnapshotCache()
	c.Put(model.TypeHost, "H1", res(model.TypeHost, "H1", tallies(1, 0), "S1"), 1)
	c.Put(model.TypeHost, "H1", res(model.TypeHost, "H1", tallies(0, 1), "S2"), 2)

	entry, ok := c.Get(model.TypeHost, "H1")
	require.True(t, ok)
	assert.Equal(t, []string{"S2"}, entry.Snapshot.MemberIDs)
	assert.Equal(t, uint64(2), entry.LastUpdatedAtCycle)
}

func TestSnapshotCache_CycleNeverDecreases(t *testing.T) {
	c := NewSnapshotCache()
	c.Put(model.TypeServer, "S1", res(model.TypeServer, "S1", tallies(1, 0)), 5)
	c.Put(model.TypeServer, "S1", res(model.TypeServer, "S1", tallies(0, 1)), 3)

	entry, _ := c.Get(model.TypeServer, "S1")
	assert.Equal(t, uint64(5), entry.LastUpdatedAtCycle)
	assert.Equal(t, 1, entry.Snapshot.Tallies.Down)
}

func TestSnapshotCache_Evict(t *testing.T) {
	c := NewSnapshotCache()
	c.Put(model.TypeApplication, "S1,App1", res(model.TypeApplication, "S1,App1", tallies(1, 0)), 1)
	c.Evict(model.TypeApplication, "S1,App1")
	c.Evict(model.TypeApplication, "missing")

	_, ok := c.Get(model.TypeApplication, "S1,App1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSnapshotCache_ResourceIDsSkipCollection(t *testing.T) {
	c := NewSnapshotCache()
	c.Put(model.TypeCluster, "", res(model.TypeCluster, "", tallies(2, 0), "C2", "C1"), 1)
	c.Put(model.TypeCluster, "C2", res(model.TypeCluster, "C2", tallies(1, 0)), 1)
	c.Put(model.TypeCluster, "C1", res(model.TypeCluster, "C1", tallies(1, 0)), 1)

	assert.Equal(t, []string{"C1", "C2"}, c.ResourceIDs(model.TypeCluster))
	assert.Len(t, c.List(model.TypeCluster), 3)
	assert.Empty(t, c.ResourceIDs(model.TypeHost))
}

func TestSnapshotCache_Digest(t *testing.T) {
	c := NewSnapshotCache()
	c.PutDigest(model.NewDigest(model.TypeAlerts, model.Counts{"count": 2}, []string{"S1"}), 4)

	entry, ok := c.Get(model.TypeAlerts, "")
	require.True(t, ok)
	assert.Nil(t, entry.Snapshot)
	assert.Equal(t, 2, entry.Digest.Counts["count"])
	assert.Equal(t, uint64(4), entry.LastUpdatedAtCycle)
}

func TestSnapshotCache_Reset(t *testing.T) {
	c := NewSnapshotCache()
	c.Put(model.TypeHost, "H1", res(model.TypeHost, "H1", tallies(1, 0)), 1)
	c.PutDigest(model.NewDigest(model.TypeSummary, nil, nil), 1)
	require.Equal(t, 2, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}
