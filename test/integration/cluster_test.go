package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/coasterd/internal/broker"
	"github.com/dreamware/coasterd/internal/cluster"
	"github.com/dreamware/coasterd/internal/replicate"
	"github.com/dreamware/coasterd/internal/status"
	"github.com/dreamware/coasterd/internal/store"
)

// node bundles one in-process coasterd instance under test.
type node struct {
	coord      *cluster.Coordinator
	propagator *replicate.Propagator
	reporter   *status.Reporter
	store      store.Store
}

// testCluster wires several nodes onto one shared in-memory broker.
type testCluster struct {
	t      *testing.T
	broker *broker.MemoryBroker
	nodes  []*node
}

func newTestCluster(t *testing.T, size int) *testCluster {
	t.Helper()
	tc := &testCluster{t: t, broker: broker.NewMemoryBroker()}
	for i := 0; i < size; i++ {
		tc.addNode()
	}
	return tc
}

func (tc *testCluster) addNode() *node {
	tc.t.Helper()
	ctx := context.Background()

	coord := cluster.NewCoordinator(tc.broker, cluster.Config{
		HeartbeatInterval: 25 * time.Millisecond,
		LivenessWindow:    100 * time.Millisecond,
	}, nil)
	require.NoError(tc.t, coord.Start(ctx))

	s := store.NewMemoryStore()
	p := replicate.NewPropagator(s, coord, nil)
	require.NoError(tc.t, p.Start(ctx))

	n := &node{
		coord:      coord,
		propagator: p,
		reporter:   status.NewReporter(s, coord, time.Minute, nil),
		store:      s,
	}
	tc.nodes = append(tc.nodes, n)
	tc.t.Cleanup(func() { _ = coord.Stop(context.Background()) })
	return n
}

func (tc *testCluster) masters() []*node {
	var out []*node
	for _, n := range tc.nodes {
		if n.coord.IsLeader() {
			out = append(out, n)
		}
	}
	return out
}

// TestClusterFormation verifies three nodes converge on one master and a
// shared membership view.
func TestClusterFormation(t *testing.T) {
	tc := newTestCluster(t, 3)

	assert.Eventually(t, func() bool {
		for _, n := range tc.nodes {
			if n.coord.PeerCount() != 3 {
				return false
			}
		}
		return len(tc.masters()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// Every node agrees on who the master is.
	want := tc.masters()[0].coord.NodeID()
	for _, n := range tc.nodes {
		assert.Equal(t, want, n.coord.Snapshot().MasterID)
	}
}

// TestClusterReplicationConvergence verifies mutations from different nodes
// converge on every store, and the reports agree.
func TestClusterReplicationConvergence(t *testing.T) {
	ctx := context.Background()
	tc := newTestCluster(t, 3)

	created, err := tc.nodes[0].propagator.CreateCoaster(ctx, store.Coaster{
		StaffCount:  16,
		ClientCount: 60000,
		TrackLength: 1800,
		HoursFrom:   "8:00",
		HoursTo:     "16:00",
	})
	require.NoError(t, err)

	// Wait for the coaster to land everywhere before node 1 mutates it.
	assert.Eventually(t, func() bool {
		for _, n := range tc.nodes {
			if _, ok := n.store.GetCoaster(created.ID); !ok {
				return false
			}
		}
		return true
	}, 2*time.Second, 20*time.Millisecond)

	wagon, err := tc.nodes[1].propagator.AddWagon(ctx, created.ID, store.Wagon{
		SeatCount:  32,
		WagonSpeed: 1.2,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		for _, n := range tc.nodes {
			if _, ok := n.store.GetWagon(created.ID, wagon.ID); !ok {
				return false
			}
		}
		return true
	}, 2*time.Second, 20*time.Millisecond)

	// Every node computes the same capacity verdict from its own replica.
	for _, n := range tc.nodes {
		rep := n.reporter.Report()
		require.Len(t, rep.Coasters, 1)
		assert.Equal(t, 480, rep.Coasters[0].Clients.ServiceCapacity)
		assert.Equal(t, "PROBLEM", rep.Coasters[0].Status)
		assert.Equal(t, 3, rep.ConnectedNodes)
	}
}

// TestMasterFailover verifies that killing the master promotes a survivor.
func TestMasterFailover(t *testing.T) {
	tc := newTestCluster(t, 2)

	assert.Eventually(t, func() bool {
		return len(tc.masters()) == 1 && tc.nodes[0].coord.PeerCount() == 2
	}, 2*time.Second, 20*time.Millisecond)

	master := tc.masters()[0]
	var survivor *node
	for _, n := range tc.nodes {
		if n != master {
			survivor = n
		}
	}
	require.NotNil(t, survivor)

	require.NoError(t, master.coord.Stop(context.Background()))

	assert.Eventually(t, survivor.coord.IsLeader, 2*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		return survivor.coord.PeerCount() == 1
	}, 2*time.Second, 20*time.Millisecond)
}

// TestLateJoinerSeesNoHistory verifies the documented replication model:
// a node that joins after a mutation does not receive it retroactively.
func TestLateJoinerSeesNoHistory(t *testing.T) {
	ctx := context.Background()
	tc := newTestCluster(t, 1)

	created, err := tc.nodes[0].propagator.CreateCoaster(ctx, store.Coaster{
		StaffCount:  4,
		ClientCount: 500,
		TrackLength: 800,
		HoursFrom:   "9:00",
		HoursTo:     "17:00",
	})
	require.NoError(t, err)

	late := tc.addNode()

	// The earlier coaster never replicates; only new mutations do.
	time.Sleep(150 * time.Millisecond)
	_, ok := late.store.GetCoaster(created.ID)
	assert.False(t, ok)

	second, err := tc.nodes[0].propagator.CreateCoaster(ctx, store.Coaster{
		StaffCount:  4,
		ClientCount: 500,
		TrackLength: 800,
		HoursFrom:   "9:00",
		HoursTo:     "17:00",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := late.store.GetCoaster(second.ID)
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}
