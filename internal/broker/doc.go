// Package broker abstracts the shared key/value and publish/subscribe
// substrate the cluster coordinates through.
//
// Nodes never address each other directly: membership, leader election and
// record replication all go through a Broker. The production implementation
// is RedisBroker (plain keys, sets and pub/sub channels on one Redis
// server); MemoryBroker provides the same contract in process memory for
// tests and broker-less deployments.
//
// Delivery contract: messages published on one channel reach each current
// subscriber in publish order, at least once, with no ordering guarantee
// across channels and no delivery to subscribers that join later.
package broker
