package status

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/coasterd/internal/capacity"
	"github.com/dreamware/coasterd/internal/cluster"
	"github.com/dreamware/coasterd/internal/store"
)

// DefaultInterval is how often the scheduled reporter produces a report.
const DefaultInterval = 30 * time.Second

// WagonCount summarizes the fleet position of one coaster.
type WagonCount struct {
	Current  int `json:"current"`
	Required int `json:"required"`
	Safe     int `json:"safe"`
}

// Personnel summarizes the staffing position of one coaster.
type Personnel struct {
	Current    int    `json:"current"`
	Required   int    `json:"required"`
	Status     string `json:"status"`
	Difference int    `json:"difference"`
}

// Clients summarizes demand versus capacity for one coaster.
type Clients struct {
	Daily              int `json:"daily"`
	ServiceCapacity    int `json:"serviceCapacity"`
	FulfillmentPercent int `json:"fulfillmentPercent"`
}

// CoasterStatus is the per-attraction slice of a system report.
type CoasterStatus struct {
	ID         string     `json:"id"`
	HoursFrom  string     `json:"hoursFrom"`
	HoursTo    string     `json:"hoursTo"`
	WagonCount WagonCount `json:"wagonCount"`
	Personnel  Personnel  `json:"personnel"`
	Clients    Clients    `json:"clients"`
	Status     string     `json:"status"`
	Details    []string   `json:"details"`
}

// SystemStatus combines every coaster's capacity verdict with the cluster
// membership snapshot at one point in time.
type SystemStatus struct {
	Timestamp      time.Time       `json:"timestamp"`
	ConnectedNodes int             `json:"connectedNodes"`
	IsMasterNode   bool            `json:"isMasterNode"`
	CoasterCount   int             `json:"coasterCount"`
	TotalWagons    int             `json:"totalWagons"`
	TotalPersonnel int             `json:"totalPersonnel"`
	TotalClients   int             `json:"totalClients"`
	Coasters       []CoasterStatus `json:"coasters"`
}

// Reporter produces point-in-time system reports. Report is pure with
// respect to the store contents and the coordinator's membership snapshot;
// the scheduled Run loop just calls it on a ticker.
type Reporter struct {
	store    store.Store
	coord    *cluster.Coordinator
	logger   *zap.Logger
	interval time.Duration

	// now is an injection seam for timestamp assertions in tests.
	now func() time.Time
}

// NewReporter creates a reporter over the given store and coordinator.
// A non-positive interval falls back to DefaultInterval; a nil logger
// discards output.
func NewReporter(s store.Store, coord *cluster.Coordinator, interval time.Duration, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		store:    s,
		coord:    coord,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Report builds the current system status. Synchronous, no side effects.
func (r *Reporter) Report() SystemStatus {
	snap := r.coord.Snapshot()
	coasters := r.store.ListCoasters()

	out := SystemStatus{
		Timestamp:      r.now(),
		ConnectedNodes: snap.ConnectedNodes,
		IsMasterNode:   snap.IsMaster,
		CoasterCount:   len(coasters),
		Coasters:       make([]CoasterStatus, 0, len(coasters)),
	}

	for _, c := range coasters {
		wagons := r.store.ListWagons(c.ID)
		rep := capacity.Analyze(c, wagons)

		out.TotalWagons += len(wagons)
		out.TotalPersonnel += c.StaffCount
		out.TotalClients += c.ClientCount

		out.Coasters = append(out.Coasters, CoasterStatus{
			ID:        c.ID,
			HoursFrom: c.HoursFrom,
			HoursTo:   c.HoursTo,
			WagonCount: WagonCount{
				Current:  len(wagons),
				Required: rep.RequiredWagons,
				Safe:     rep.MaxSafeWagons,
			},
			Personnel: Personnel{
				Current:    c.StaffCount,
				Required:   rep.RequiredPersonnel,
				Status:     rep.PersonnelStatus,
				Difference: rep.PersonnelDiff,
			},
			Clients: Clients{
				Daily:              c.ClientCount,
				ServiceCapacity:    rep.DailyCapacity,
				FulfillmentPercent: rep.FulfillmentPercent,
			},
			Status:  rep.Status,
			Details: rep.Details,
		})
	}
	return out
}

// Run invokes Report on a fixed interval and forwards each result to sink,
// until the context is cancelled. An initial report fires immediately.
// Cooperative scheduling, not a hard real-time guarantee.
func (r *Reporter) Run(ctx context.Context, sink func(SystemStatus)) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("status reporter started", zap.Duration("interval", r.interval))
	sink(r.Report())

	for {
		select {
		case <-ticker.C:
			sink(r.Report())
		case <-ctx.Done():
			r.logger.Info("status reporter stopped")
			return
		}
	}
}
