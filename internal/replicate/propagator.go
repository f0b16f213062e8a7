package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamware/coasterd/internal/cluster"
	"github.com/dreamware/coasterd/internal/store"
)

// Broker channels carrying record mutations. Payloads are Envelope JSON.
const (
	ChannelCoasterAdded   = "coaster_added"
	ChannelCoasterUpdated = "coaster_updated"
	ChannelWagonAdded     = "wagon_added"
	ChannelWagonRemoved   = "wagon_removed"
)

// Envelope wraps a replicated mutation with its origin node id so receivers
// can drop their own echoes.
type Envelope struct {
	Origin string          `json:"origin"`
	Record json.RawMessage `json:"record"`
}

// Removal is the record payload for wagon_removed events.
type Removal struct {
	CoasterID string `json:"coasterId"`
	WagonID   string `json:"wagonId"`
}

// ErrCoasterNotFound is returned when a mutation names an unknown coaster.
var ErrCoasterNotFound = fmt.Errorf("coaster not found")

// ErrWagonNotFound is returned when a removal names an unknown wagon or a
// mismatched coaster/wagon pair.
var ErrWagonNotFound = fmt.Errorf("wagon not found")

// Propagator makes every local record mutation visible to peer nodes and
// applies peer mutations locally, without echo loops. It is the mutation API
// the HTTP front end talks to; reads go straight to the store.
//
// Each mutating call is one logical unit: apply to the local store first,
// then, only on success, publish the full resulting record. A publish
// failure leaves the local mutation standing (the node diverges until
// reconnection); a store failure publishes nothing.
type Propagator struct {
	store  store.Store
	coord  *cluster.Coordinator
	logger *zap.Logger
}

// NewPropagator wires a propagator over the given store and coordinator.
// A nil logger discards output.
func NewPropagator(s store.Store, coord *cluster.Coordinator, logger *zap.Logger) *Propagator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Propagator{store: s, coord: coord, logger: logger}
}

// Start registers the inbound handlers for all four change channels. The
// handlers run on the coordinator's event loop, serialized with membership
// bookkeeping.
func (p *Propagator) Start(ctx context.Context) error {
	channels := map[string]func(Envelope){
		ChannelCoasterAdded:   p.applyCoaster,
		ChannelCoasterUpdated: p.applyCoaster,
		ChannelWagonAdded:     p.applyWagon,
		ChannelWagonRemoved:   p.applyRemoval,
	}
	for channel, apply := range channels {
		apply := apply
		err := p.coord.OnMessage(ctx, channel, func(payload string) {
			var env Envelope
			if err := json.Unmarshal([]byte(payload), &env); err != nil {
				p.logger.Warn("dropping malformed change event", zap.Error(err))
				return
			}
			// Loop prevention: never re-apply our own mutations.
			if env.Origin == p.coord.NodeID() {
				return
			}
			apply(env)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", channel, err)
		}
	}
	return nil
}

// CreateCoaster validates and stores a new coaster under a fresh id, then
// announces it to peers.
func (p *Propagator) CreateCoaster(ctx context.Context, c store.Coaster) (store.Coaster, error) {
	c.ID = uuid.NewString()
	if err := c.Validate(); err != nil {
		return store.Coaster{}, err
	}
	if err := p.store.PutCoaster(c); err != nil {
		return store.Coaster{}, fmt.Errorf("store coaster: %w", err)
	}
	p.publish(ctx, ChannelCoasterAdded, c)
	return c, nil
}

// UpdateCoaster applies a partial update to an existing coaster and
// announces the resulting record. The store validates the merged record
// before committing, so a rejected patch leaves the local record and the
// cluster untouched. Track length is preserved by the store no matter what
// the caller supplied.
func (p *Propagator) UpdateCoaster(ctx context.Context, id string, patch store.CoasterPatch) (store.Coaster, error) {
	updated, err := p.store.UpdateCoaster(id, patch)
	if errors.Is(err, store.ErrNotFound) {
		return store.Coaster{}, ErrCoasterNotFound
	}
	if err != nil {
		return store.Coaster{}, err
	}
	p.publish(ctx, ChannelCoasterUpdated, updated)
	return updated, nil
}

// AddWagon validates and stores a new wagon for an existing coaster, then
// announces it to peers.
func (p *Propagator) AddWagon(ctx context.Context, coasterID string, w store.Wagon) (store.Wagon, error) {
	if _, ok := p.store.GetCoaster(coasterID); !ok {
		return store.Wagon{}, ErrCoasterNotFound
	}
	w.ID = uuid.NewString()
	w.CoasterID = coasterID
	if err := w.Validate(); err != nil {
		return store.Wagon{}, err
	}
	if err := p.store.PutWagon(w); err != nil {
		return store.Wagon{}, fmt.Errorf("store wagon: %w", err)
	}
	p.publish(ctx, ChannelWagonAdded, w)
	return w, nil
}

// RemoveWagon deletes one wagon and announces the removal. A mismatched
// coaster/wagon pair fails with ErrWagonNotFound and changes nothing.
func (p *Propagator) RemoveWagon(ctx context.Context, coasterID, wagonID string) error {
	if !p.store.DeleteWagon(coasterID, wagonID) {
		return ErrWagonNotFound
	}
	p.publish(ctx, ChannelWagonRemoved, Removal{CoasterID: coasterID, WagonID: wagonID})
	return nil
}

// publish broadcasts one committed mutation. Failures are logged and
// absorbed: the local commit stands either way.
func (p *Propagator) publish(ctx context.Context, channel string, record any) {
	raw, err := json.Marshal(record)
	if err != nil {
		p.logger.Error("failed to encode change event", zap.String("channel", channel), zap.Error(err))
		return
	}
	env, err := json.Marshal(Envelope{Origin: p.coord.NodeID(), Record: raw})
	if err != nil {
		p.logger.Error("failed to encode change envelope", zap.String("channel", channel), zap.Error(err))
		return
	}
	if err := p.coord.Broadcast(ctx, channel, string(env)); err != nil {
		p.logger.Warn("change event not propagated; node diverges until reconnect",
			zap.String("channel", channel), zap.Error(err))
	}
}

// applyCoaster applies a peer's coaster create or update. The published
// record is the origin's full post-mutation state, so a plain put is the
// receiving half of the same mutation.
func (p *Propagator) applyCoaster(env Envelope) {
	var c store.Coaster
	if err := json.Unmarshal(env.Record, &c); err != nil {
		p.logger.Warn("dropping malformed coaster event", zap.Error(err))
		return
	}
	if err := p.store.PutCoaster(c); err != nil {
		p.logger.Error("failed to apply replicated coaster", zap.String("coaster_id", c.ID), zap.Error(err))
		return
	}
	p.logger.Debug("applied replicated coaster",
		zap.String("coaster_id", c.ID), zap.String("origin", env.Origin))
}

// applyWagon applies a peer's wagon addition.
func (p *Propagator) applyWagon(env Envelope) {
	var w store.Wagon
	if err := json.Unmarshal(env.Record, &w); err != nil {
		p.logger.Warn("dropping malformed wagon event", zap.Error(err))
		return
	}
	if err := p.store.PutWagon(w); err != nil {
		p.logger.Error("failed to apply replicated wagon", zap.String("wagon_id", w.ID), zap.Error(err))
		return
	}
	p.logger.Debug("applied replicated wagon",
		zap.String("wagon_id", w.ID), zap.String("origin", env.Origin))
}

// applyRemoval applies a peer's wagon removal. An already-gone wagon is fine:
// the delete is idempotent across the cluster.
func (p *Propagator) applyRemoval(env Envelope) {
	var r Removal
	if err := json.Unmarshal(env.Record, &r); err != nil {
		p.logger.Warn("dropping malformed removal event", zap.Error(err))
		return
	}
	if !p.store.DeleteWagon(r.CoasterID, r.WagonID) {
		p.logger.Debug("replicated removal named an unknown wagon",
			zap.String("coaster_id", r.CoasterID), zap.String("wagon_id", r.WagonID))
	}
}
