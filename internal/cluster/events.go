package cluster

// Broker channels used for node lifecycle events. Payloads are plain node id
// strings. Record-change channels live in the replicate package.
const (
	// ChannelNodeConnected announces a node joining the cluster.
	ChannelNodeConnected = "node_connected"
	// ChannelNodeDisconnected announces a node leaving the cluster.
	ChannelNodeDisconnected = "node_disconnected"
	// ChannelMasterChanged announces a new master's node id.
	ChannelMasterChanged = "master_changed"
)

// Broker keys holding the externalized coordination state. No single node
// owns them; every node keeps an eventually-consistent cached view.
const (
	masterKey   = "coasterd:cluster:master"
	membersKey  = "coasterd:cluster:nodes"
	alivePrefix = "coasterd:cluster:alive:"
)

// Role is this node's position in the cluster.
type Role int

const (
	// RoleNone means the node is not participating in coordination.
	RoleNone Role = iota
	// RoleWorker means another node currently holds the master key.
	RoleWorker
	// RoleMaster means this node holds the master key.
	RoleMaster
)

func (r Role) String() string {
	switch r {
	case RoleWorker:
		return "worker"
	case RoleMaster:
		return "master"
	default:
		return "none"
	}
}

// State is the coordinator's connection lifecycle state.
type State int

const (
	// StateDisconnected means no broker session exists. Local data
	// operations proceed; coordination calls are no-ops.
	StateDisconnected State = iota
	// StateConnecting means the broker handshake is in progress.
	StateConnecting
	// StateConnected means the node participates in the cluster.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler is invoked once per message delivered on a subscribed channel.
// Handlers run on the coordinator's single event loop: they must not block
// and they never run concurrently with each other.
type Handler func(payload string)
