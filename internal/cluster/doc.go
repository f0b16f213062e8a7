// Package cluster implements node membership, master election and failure
// detection for a fleet of coasterd processes that never address each other
// directly.
//
// # Overview
//
// Every node talks only to the shared broker: a key/value space plus
// pub/sub channels. The broker holds the externalized coordination state (a
// member set, one master key, and a liveness marker per node); each node's
// Coordinator keeps a local, eventually-consistent cache of that state in a
// MembershipTable.
//
// # Architecture
//
//	             ┌─────────────────────────┐
//	             │         Broker          │
//	             │  master key │ node set  │
//	             │  alive:<id> markers     │
//	             │  lifecycle channels     │
//	             └──────┬──────────┬───────┘
//	                    │          │
//	         ┌──────────▼───┐ ┌────▼─────────┐
//	         │ Coordinator  │ │ Coordinator  │
//	         │  node A      │ │  node B      │
//	         │  role:master │ │  role:worker │
//	         └──────────────┘ └──────────────┘
//
// # Election
//
// On connect a node reads the master key and, finding it unset, writes its
// own id. Each heartbeat re-reads the key and takes over when it is unset or
// when the named master is missing from the member set or has a stale
// liveness marker. The read-then-set claim is not atomic: two nodes racing
// past an unset key can both believe they are master until a later heartbeat
// converges on the key's final value. This is a documented property of the
// design, exercised by tests; Broker.SetNX is the hook for deployments that
// need the strict single-master variant.
//
// # Concurrency Model
//
// One event loop goroutine per Coordinator executes heartbeats, membership
// events and all externally registered channel handlers, so nothing races on
// the membership table or the role flag. Subscription goroutines only pump
// broker messages onto the loop's queue. IsLeader, PeerCount and Snapshot
// are cheap cached reads that never touch the broker.
//
// # Failure Handling
//
// Coordination failures never escape this package: a node that cannot reach
// the broker (at Start or mid-flight) degrades to standalone mode, where it
// reports itself as a single-node master and all broadcasts become no-ops.
// Reconnection is left to the owning process.
package cluster
