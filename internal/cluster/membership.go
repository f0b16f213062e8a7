package cluster

import (
	"sort"
	"sync"
	"time"
)

// MembershipTable is one node's local, eventually-consistent cache of which
// nodes are alive and which one holds the master role. It is mutated only by
// the owning Coordinator's event loop; other components read snapshots.
// Thread-safe: All methods are safe for concurrent access.
type MembershipTable struct {
	mu       sync.RWMutex
	nodes    map[string]time.Time // node id -> last seen
	masterID string
}

// NewMembershipTable creates an empty membership table.
func NewMembershipTable() *MembershipTable {
	return &MembershipTable{
		nodes: make(map[string]time.Time),
	}
}

// Add records a node as alive at the given time.
func (t *MembershipTable) Add(id string, seen time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nodes[id] = seen
}

// Remove drops a node from the table. If the node was the cached master, the
// master pointer is cleared so the next heartbeat can re-elect.
func (t *MembershipTable) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.nodes, id)
	if t.masterID == id {
		t.masterID = ""
	}
}

// Sync replaces the node set with the given ids, all seen at the given time,
// always retaining self. Used by the heartbeat to reconcile the local cache
// with the broker's member set.
func (t *MembershipTable) Sync(self string, ids []string, seen time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]time.Time, len(ids)+1)
	next[self] = seen
	for _, id := range ids {
		next[id] = seen
	}
	t.nodes = next
	if t.masterID != "" {
		if _, ok := next[t.masterID]; !ok {
			t.masterID = ""
		}
	}
}

// SetMaster records the cluster-wide master pointer as last observed.
func (t *MembershipTable) SetMaster(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.masterID = id
}

// Master returns the cached master node id, or "" if none is known.
func (t *MembershipTable) Master() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.masterID
}

// Has reports whether a node id is in the table.
func (t *MembershipTable) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.nodes[id]
	return ok
}

// Count returns the number of known-alive nodes, self included.
func (t *MembershipTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.nodes)
}

// Nodes returns a sorted copy of all known node ids.
func (t *MembershipTable) Nodes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.nodes))
	for id := range t.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
