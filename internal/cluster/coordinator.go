package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dreamware/coasterd/internal/broker"
)

const (
	// DefaultHeartbeatInterval is how often a node refreshes its liveness
	// marker and re-checks the master key.
	DefaultHeartbeatInterval = 5 * time.Second
	// DefaultLivenessWindow is how long a node's liveness marker may go
	// unrefreshed before peers consider it dead. Heuristic, not a bound.
	DefaultLivenessWindow = 10 * time.Second

	// inboundBuffer bounds the coordinator's serialized event queue.
	inboundBuffer = 256

	// lostChannel marks a subscription that closed underneath us.
	lostChannel = "coasterd:internal:lost"
)

// Config carries the coordinator's timing knobs. Zero values fall back to
// the defaults above.
type Config struct {
	HeartbeatInterval time.Duration
	LivenessWindow    time.Duration
}

// Coordinator maintains this process's membership in the cluster and tracks
// which node is the master, using only the broker's key/value space and
// pub/sub channels. One instance per process, owned by the caller, with an
// explicit Start/Stop lifecycle.
//
// All membership bookkeeping and subscribed-message handlers run on a single
// event loop goroutine, so state transitions never race. Reads (IsLeader,
// PeerCount, Snapshot) are lock-protected and never block on the broker.
//
// When the broker is unreachable the coordinator degrades to standalone
// mode: Start still succeeds, broadcasts become no-ops, IsLeader reports
// true and PeerCount reports 1. Local data operations are never blocked or
// failed by coordination health.
type Coordinator struct {
	nodeID string
	broker broker.Broker
	logger *zap.Logger
	cfg    Config

	mu         sync.RWMutex
	state      State
	role       Role
	standalone bool
	handlers   map[string][]Handler

	members *MembershipTable
	inbound chan broker.Message

	loopCancel context.CancelFunc
	subCancels []func()
	wg         sync.WaitGroup
	stopOnce   sync.Once

	// done releases pump goroutines blocked on a full inbound queue once
	// the event loop is no longer draining it.
	done     chan struct{}
	doneOnce sync.Once

	// now is an injection seam for liveness staleness tests.
	now func() time.Time
}

// NewCoordinator creates a coordinator with a freshly generated node id.
// The id is stable for the process lifetime. A nil logger discards output.
func NewCoordinator(b broker.Broker, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.LivenessWindow <= 0 {
		cfg.LivenessWindow = DefaultLivenessWindow
	}
	return &Coordinator{
		nodeID:   uuid.NewString(),
		broker:   b,
		logger:   logger,
		cfg:      cfg,
		state:    StateDisconnected,
		role:     RoleNone,
		handlers: make(map[string][]Handler),
		members:  NewMembershipTable(),
		inbound:  make(chan broker.Message, inboundBuffer),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// NodeID returns this node's id.
func (c *Coordinator) NodeID() string {
	return c.nodeID
}

// Start connects to the broker, joins the member set, claims or observes the
// master key and launches the heartbeat loop.
//
// Start is idempotent and never fails because the broker is unreachable: in
// that case the node runs standalone and Start returns nil. The returned
// error is reserved for a cancelled context.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected || c.standalone {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		c.becomeStandalone("context cancelled during connect", err)
		return err
	}

	if err := c.broker.Ping(ctx); err != nil {
		c.becomeStandalone("broker unreachable", err)
		return nil
	}

	channels := []string{ChannelNodeConnected, ChannelNodeDisconnected, ChannelMasterChanged}
	c.mu.RLock()
	for channel := range c.handlers {
		switch channel {
		case ChannelNodeConnected, ChannelNodeDisconnected, ChannelMasterChanged:
		default:
			// Handlers registered before Start still need a subscription.
			channels = append(channels, channel)
		}
	}
	c.mu.RUnlock()
	for _, channel := range channels {
		if err := c.pump(ctx, channel); err != nil {
			c.becomeStandalone("subscribe failed", err)
			return nil
		}
	}

	now := c.now()
	if err := c.register(ctx, now); err != nil {
		c.becomeStandalone("broker registration failed", err)
		return nil
	}

	c.claimLeadership(ctx)

	if err := c.broker.Publish(ctx, ChannelNodeConnected, c.nodeID); err != nil {
		c.logger.Warn("failed to announce node_connected", zap.Error(err))
	}

	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	c.wg.Add(1)
	go c.run(loopCtx)

	c.logger.Info("joined cluster",
		zap.String("node_id", c.nodeID),
		zap.String("role", c.Role().String()))
	return nil
}

// register writes this node's liveness marker and member-set entry.
func (c *Coordinator) register(ctx context.Context, now time.Time) error {
	if err := c.broker.Set(ctx, alivePrefix+c.nodeID, now.Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if err := c.broker.AddToSet(ctx, membersKey, c.nodeID); err != nil {
		return err
	}
	c.members.Add(c.nodeID, now)

	peers, err := c.broker.SetMembers(ctx, membersKey)
	if err != nil {
		return err
	}
	for _, id := range peers {
		c.members.Add(id, now)
	}
	return nil
}

// claimLeadership reads the master key and takes the role accordingly,
// setting the key to this node's id when it is unset.
//
// The read-then-set is deliberately not atomic: two nodes racing past an
// unset key can both become master until the next heartbeat sorts the
// cluster out. The broker's SetNX exists for deployments that need the
// strict variant.
func (c *Coordinator) claimLeadership(ctx context.Context) {
	current, err := c.broker.Get(ctx, masterKey)
	switch {
	case errors.Is(err, broker.ErrNotFound) || (err == nil && current == ""):
		c.promote(ctx)
	case err != nil:
		c.logger.Warn("failed to read master key", zap.Error(err))
		c.setRole(RoleWorker)
	case current == c.nodeID:
		c.setRole(RoleMaster)
		c.members.SetMaster(c.nodeID)
	default:
		c.setRole(RoleWorker)
		c.members.SetMaster(current)
	}
}

// promote rewrites the master key to this node's id and announces the
// change.
func (c *Coordinator) promote(ctx context.Context) {
	if err := c.broker.Set(ctx, masterKey, c.nodeID); err != nil {
		c.logger.Warn("failed to write master key", zap.Error(err))
		c.setRole(RoleWorker)
		return
	}
	c.setRole(RoleMaster)
	c.members.SetMaster(c.nodeID)
	if err := c.broker.Publish(ctx, ChannelMasterChanged, c.nodeID); err != nil {
		c.logger.Warn("failed to announce master_changed", zap.Error(err))
	}
	c.logger.Info("promoted to master", zap.String("node_id", c.nodeID))
}

// pump subscribes to one channel and forwards its messages onto the
// coordinator's single inbound queue.
func (c *Coordinator) pump(ctx context.Context, channel string) error {
	msgs, cancel, err := c.broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	c.mu.Lock()
	c.subCancels = append(c.subCancels, cancel)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for msg := range msgs {
			select {
			case c.inbound <- msg:
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
		}
		// Subscription closed underneath us: broker connection lost.
		select {
		case c.inbound <- broker.Message{Channel: lostChannel, Payload: channel}:
		default:
		}
	}()
	return nil
}

// run is the coordinator's event loop. Heartbeats, membership events and all
// externally registered handlers execute here, one at a time.
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.inbound:
			if msg.Channel == lostChannel {
				if c.State() == StateConnected {
					c.becomeStandalone("broker subscription lost", nil)
				}
				return
			}
			c.dispatch(msg)
		case <-ticker.C:
			c.heartbeat(ctx)
		}
	}
}

// dispatch applies one delivered message to the membership table, then
// invokes any externally registered handlers for its channel.
func (c *Coordinator) dispatch(msg broker.Message) {
	switch msg.Channel {
	case ChannelNodeConnected:
		if msg.Payload != c.nodeID {
			c.members.Add(msg.Payload, c.now())
			c.logger.Info("peer connected", zap.String("peer_id", msg.Payload))
		}
	case ChannelNodeDisconnected:
		if msg.Payload != c.nodeID {
			c.members.Remove(msg.Payload)
			c.logger.Info("peer disconnected", zap.String("peer_id", msg.Payload))
		}
	case ChannelMasterChanged:
		c.members.SetMaster(msg.Payload)
		if msg.Payload == c.nodeID {
			c.setRole(RoleMaster)
		} else {
			c.setRole(RoleWorker)
			c.logger.Info("new master observed", zap.String("master_id", msg.Payload))
		}
	}

	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers[msg.Channel]...)
	c.mu.RUnlock()
	for _, h := range handlers {
		h(msg.Payload)
	}
}

// heartbeat refreshes this node's liveness marker, reconciles the cached
// member set and promotes this node when the master is gone or stale.
func (c *Coordinator) heartbeat(ctx context.Context) {
	if ctx.Err() != nil || c.State() != StateConnected {
		return
	}
	now := c.now()

	if err := c.broker.Set(ctx, alivePrefix+c.nodeID, now.Format(time.RFC3339Nano)); err != nil {
		c.logger.Warn("heartbeat liveness refresh failed", zap.Error(err))
		c.becomeStandalone("broker write failed during heartbeat", err)
		return
	}
	if err := c.broker.AddToSet(ctx, membersKey, c.nodeID); err != nil {
		c.logger.Warn("heartbeat member refresh failed", zap.Error(err))
	}

	if peers, err := c.broker.SetMembers(ctx, membersKey); err == nil {
		c.members.Sync(c.nodeID, peers, now)
	}

	current, err := c.broker.Get(ctx, masterKey)
	if errors.Is(err, broker.ErrNotFound) || (err == nil && current == "") {
		c.promote(ctx)
		return
	}
	if err != nil {
		c.logger.Warn("heartbeat master check failed", zap.Error(err))
		return
	}
	if current == c.nodeID {
		c.setRole(RoleMaster)
		c.members.SetMaster(c.nodeID)
		return
	}

	if c.masterGone(ctx, current, now) {
		c.logger.Info("master appears dead, taking over", zap.String("master_id", current))
		c.promote(ctx)
		return
	}
	c.setRole(RoleWorker)
	c.members.SetMaster(current)
}

// masterGone reports whether the named master is missing from the member set
// or has a liveness marker older than the liveness window. Best-effort
// detection, not a fencing guarantee.
func (c *Coordinator) masterGone(ctx context.Context, masterID string, now time.Time) bool {
	member, err := c.broker.IsMember(ctx, membersKey, masterID)
	if err == nil && !member {
		return true
	}

	raw, err := c.broker.Get(ctx, alivePrefix+masterID)
	if err != nil {
		return true
	}
	seen, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return true
	}
	return now.Sub(seen) > c.cfg.LivenessWindow
}

// becomeStandalone drops out of coordination while keeping the node fully
// usable for local data operations.
func (c *Coordinator) becomeStandalone(reason string, err error) {
	c.mu.Lock()
	c.state = StateDisconnected
	c.role = RoleNone
	c.standalone = true
	cancels := c.subCancels
	c.subCancels = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	c.closeDone()
	c.logger.Warn("running standalone", zap.String("reason", reason), zap.Error(err))
}

// closeDone signals every pump goroutine that the event loop stopped
// draining, even ones blocked mid-send on a full inbound queue.
func (c *Coordinator) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// IsLeader reports whether this node should act as the cluster master.
// A standalone node is its own master. Pure read of cached state.
func (c *Coordinator) IsLeader() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.standalone || c.role == RoleMaster
}

// PeerCount returns the number of nodes this node believes are connected,
// itself included. Pure read of cached state.
func (c *Coordinator) PeerCount() int {
	c.mu.RLock()
	standalone := c.standalone
	c.mu.RUnlock()

	if standalone {
		return 1
	}
	if n := c.members.Count(); n > 0 {
		return n
	}
	return 1
}

// Role returns this node's current role.
func (c *Coordinator) Role() Role {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.role
}

// State returns the coordinator's lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

func (c *Coordinator) setRole(r Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.role = r
}

// Snapshot is a point-in-time view of the coordinator's cached cluster
// facts, consumed by the status reporter.
type Snapshot struct {
	NodeID         string
	Role           Role
	MasterID       string
	Nodes          []string
	ConnectedNodes int
	IsMaster       bool
	Standalone     bool
}

// Snapshot returns the current membership view. Never blocks.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	role := c.role
	standalone := c.standalone
	c.mu.RUnlock()

	return Snapshot{
		NodeID:         c.nodeID,
		Role:           role,
		MasterID:       c.members.Master(),
		Nodes:          c.members.Nodes(),
		ConnectedNodes: c.PeerCount(),
		IsMaster:       c.IsLeader(),
		Standalone:     standalone,
	}
}

// Broadcast publishes a payload on a channel, best-effort. A disconnected or
// standalone node silently drops the message. A publish failure is returned
// for the caller to log; it never affects local state.
func (c *Coordinator) Broadcast(ctx context.Context, channel, payload string) error {
	if c.State() != StateConnected {
		return nil
	}
	return c.broker.Publish(ctx, channel, payload)
}

// OnMessage registers a handler for a channel on a dedicated subscription.
// The handler runs on the coordinator's event loop, serialized with all
// membership bookkeeping. On a standalone node the handler is recorded but
// nothing will ever deliver to it.
func (c *Coordinator) OnMessage(ctx context.Context, channel string, h Handler) error {
	c.mu.Lock()
	_, subscribed := c.handlers[channel]
	c.handlers[channel] = append(c.handlers[channel], h)
	connected := c.state == StateConnected
	c.mu.Unlock()

	switch channel {
	case ChannelNodeConnected, ChannelNodeDisconnected, ChannelMasterChanged:
		// Lifecycle channels already feed the event loop.
		return nil
	}
	if !connected || subscribed {
		return nil
	}
	return c.pump(ctx, channel)
}

// Stop leaves the cluster gracefully: announce node_disconnected, remove
// self from the member set, clear the master key if it still names self,
// then end the event loop and all subscriptions. Safe to call more than
// once and on a node that never connected. Cleanup errors are collected and
// returned, never fatal.
func (c *Coordinator) Stop(ctx context.Context) error {
	var errs error
	c.stopOnce.Do(func() {
		connected := c.State() == StateConnected

		if connected {
			if err := c.broker.Publish(ctx, ChannelNodeDisconnected, c.nodeID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("announce disconnect: %w", err))
			}
			if err := c.broker.RemoveFromSet(ctx, membersKey, c.nodeID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("leave member set: %w", err))
			}
			if err := c.broker.Del(ctx, alivePrefix+c.nodeID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("clear liveness marker: %w", err))
			}
			// Only clear the master key if it still names this node, so a
			// newer master is not clobbered.
			if current, err := c.broker.Get(ctx, masterKey); err == nil && current == c.nodeID {
				if err := c.broker.Del(ctx, masterKey); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("clear master key: %w", err))
				}
			}
		}

		c.mu.Lock()
		c.state = StateDisconnected
		c.role = RoleNone
		cancels := c.subCancels
		c.subCancels = nil
		loopCancel := c.loopCancel
		c.mu.Unlock()

		if loopCancel != nil {
			loopCancel()
		}
		for _, cancel := range cancels {
			cancel()
		}
		c.closeDone()
		c.wg.Wait()

		c.logger.Info("left cluster", zap.String("node_id", c.nodeID))
	})
	return errs
}
