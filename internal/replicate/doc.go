// Package replicate propagates record mutations between nodes.
//
// A Propagator wraps the node's record store: local mutations commit to the
// store first and are then broadcast to peers as full-record change events;
// inbound peer events are applied through the same store operations with
// re-publication suppressed, and a node's own events are dropped on receipt
// by origin id.
//
// Replication is best-effort with no conflict resolution: concurrent
// conflicting updates to one record from two nodes are not reconciled, and
// the last event applied wins independently at each receiver. A node whose
// publishes fail keeps its local state and simply diverges until it
// reconnects.
package replicate
