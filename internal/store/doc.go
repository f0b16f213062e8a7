// Package store holds the coaster and wagon records for one node.
//
// # Overview
//
// The store is the single resource mutated by multiple call paths: local
// API-driven writes and peer-driven replicated writes. Every implementation
// therefore serializes writes to the same record id, and partial updates run
// their whole read-modify-write cycle under one lock so an update that must
// preserve TrackLength cannot race with a concurrent full rewrite.
//
// # Records
//
// Coaster: one attraction. Its TrackLength is immutable after creation;
// UpdateCoaster discards any attempt to change it.
//
// Wagon: one transport unit, keyed by (coasterId, wagonId). A wagon belongs
// to exactly one coaster for its lifetime.
//
// # Error model
//
// Malformed records surface as *ValidationError from Validate, checked by the
// API layer before a mutation is attempted. Unknown ids surface as an
// explicit "absent" boolean result, never an error.
//
// The MemoryStore implementation keeps everything in process memory; the
// interface leaves room for an I/O-backed store, which is why PutCoaster and
// PutWagon return an error the memory implementation never produces.
package store
