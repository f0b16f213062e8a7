package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/coasterd/internal/store"
)

// TestMinutes verifies wall-clock parsing for both H:MM and HH:MM forms.
func TestMinutes(t *testing.T) {
	cases := []struct {
		clock string
		want  int
	}{
		{"0:00", 0},
		{"8:00", 480},
		{"08:30", 510},
		{"16:00", 960},
		{"23:59", 1439},
	}
	for _, tc := range cases {
		got, err := Minutes(tc.clock)
		require.NoError(t, err, tc.clock)
		assert.Equal(t, tc.want, got, tc.clock)
	}

	_, err := Minutes("noon")
	assert.Error(t, err)
}

// TestAnalyzeReferenceScenario pins the full arithmetic chain on one worked
// example: a 1800m track open 8:00-16:00 with a single 32-seat wagon at
// 1.2 m/s.
func TestAnalyzeReferenceScenario(t *testing.T) {
	c := store.Coaster{
		ID:          "c1",
		StaffCount:  16,
		ClientCount: 60000,
		TrackLength: 1800,
		HoursFrom:   "8:00",
		HoursTo:     "16:00",
	}
	wagons := []store.Wagon{{ID: "w1", CoasterID: "c1", SeatCount: 32, WagonSpeed: 1.2}}

	r := Analyze(c, wagons)

	// operationMinutes=480, roundTrip=(1800/1.2)/60=25, safe=455,
	// roundsPerWagon=floor(455/30)=15, daily=floor(32*15*1)=480
	assert.Equal(t, 480, r.OperationMinutes)
	assert.Equal(t, 480, r.DailyCapacity)

	// 480 visitors against a 60000 target is a long way short
	assert.False(t, r.ScheduleInfeasible)
	assert.Greater(t, r.RequiredWagons, 1)
	assert.Equal(t, PersonnelShortage, r.PersonnelStatus)
	assert.Equal(t, StatusProblem, r.Status)
	assert.Equal(t, 1, r.FulfillmentPercent)
	assert.NotEmpty(t, r.Details)
}

// TestAnalyzeDegenerateWindow covers zero and negative operating windows.
// hoursTo before hoursFrom is a zero-length day, not a wrap past midnight.
func TestAnalyzeDegenerateWindow(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
	}{
		{"equal hours", "9:00", "9:00"},
		{"to before from", "16:00", "8:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := store.Coaster{ID: "c1", ClientCount: 1000, TrackLength: 600, HoursFrom: tc.from, HoursTo: tc.to}
			wagons := []store.Wagon{{ID: "w1", CoasterID: "c1", SeatCount: 30, WagonSpeed: 1.0}}

			r := Analyze(c, wagons)

			assert.LessOrEqual(t, r.OperationMinutes, 0)
			assert.Equal(t, 0, r.DailyCapacity)
			assert.Equal(t, 0, r.FulfillmentPercent)
			assert.True(t, r.ScheduleInfeasible)
			assert.Equal(t, InfeasibleWagonSentinel, r.RequiredWagons)
			assert.Equal(t, 0, r.MaxSafeWagons)
			assert.Equal(t, StatusProblem, r.Status)
		})
	}
}

// TestAnalyzeEmptyRoster verifies the default wagon profile is used when a
// coaster has no wagons yet.
func TestAnalyzeEmptyRoster(t *testing.T) {
	c := store.Coaster{ID: "c1", StaffCount: 5, ClientCount: 300, TrackLength: 1200, HoursFrom: "9:00", HoursTo: "18:00"}

	r := Analyze(c, nil)

	// No wagons means no actual capacity...
	assert.Equal(t, 0, r.DailyCapacity)
	assert.Equal(t, 0, r.FulfillmentPercent)

	// ...but the requirement is still computable from the default profile:
	// rtt=(1200/1.0)/60=20, safe=540-20=520, rounds=floor(520/25)=20,
	// required=ceil(300/20/30)=1
	assert.False(t, r.ScheduleInfeasible)
	assert.Equal(t, 1, r.RequiredWagons)
	assert.Equal(t, BasePersonnel+PersonnelPerWagon, r.RequiredPersonnel)

	// Zero wagons against one required is a problem
	assert.Equal(t, StatusProblem, r.Status)
}

// TestAnalyzePure verifies the model has no hidden state: repeated calls on
// identical inputs yield identical reports.
func TestAnalyzePure(t *testing.T) {
	c := store.Coaster{ID: "c1", StaffCount: 7, ClientCount: 2000, TrackLength: 900, HoursFrom: "10:00", HoursTo: "19:00"}
	wagons := []store.Wagon{
		{ID: "w1", CoasterID: "c1", SeatCount: 24, WagonSpeed: 1.1},
		{ID: "w2", CoasterID: "c1", SeatCount: 30, WagonSpeed: 0.9},
	}

	first := Analyze(c, wagons)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Analyze(c, wagons))
	}
}

// TestDailyCapacityMonotonicInSpeed verifies that a faster fleet never
// serves fewer visitors, holding everything else fixed.
func TestDailyCapacityMonotonicInSpeed(t *testing.T) {
	c := store.Coaster{ID: "c1", ClientCount: 5000, TrackLength: 1500, HoursFrom: "8:00", HoursTo: "20:00"}

	prev := -1
	for speed := 0.5; speed <= 5.0; speed += 0.25 {
		wagons := []store.Wagon{{ID: "w1", CoasterID: "c1", SeatCount: 30, WagonSpeed: speed}}
		daily := Analyze(c, wagons).DailyCapacity
		assert.GreaterOrEqual(t, daily, prev, "speed %.2f", speed)
		prev = daily
	}
}

// TestPersonnelVerdict covers the three staffing classifications and the
// absolute difference they report.
func TestPersonnelVerdict(t *testing.T) {
	c := store.Coaster{ID: "c1", ClientCount: 400, TrackLength: 600, HoursFrom: "9:00", HoursTo: "18:00"}
	wagons := []store.Wagon{{ID: "w1", CoasterID: "c1", SeatCount: 30, WagonSpeed: 1.0}}

	// Requirement here is BasePersonnel + required*PersonnelPerWagon.
	base := Analyze(c, wagons)
	required := base.RequiredPersonnel

	c.StaffCount = required - 2
	r := Analyze(c, wagons)
	assert.Equal(t, PersonnelShortage, r.PersonnelStatus)
	assert.Equal(t, 2, r.PersonnelDiff)

	c.StaffCount = required
	r = Analyze(c, wagons)
	assert.Equal(t, PersonnelOK, r.PersonnelStatus)
	assert.Equal(t, 0, r.PersonnelDiff)

	c.StaffCount = required * 2
	r = Analyze(c, wagons)
	assert.Equal(t, PersonnelExcess, r.PersonnelStatus)
	assert.Equal(t, required, r.PersonnelDiff)
}

// TestMaxSafeWagons verifies the spacing bound and the too-short-window case.
func TestMaxSafeWagons(t *testing.T) {
	c := store.Coaster{ID: "c1", ClientCount: 100, TrackLength: 750, HoursFrom: "9:00", HoursTo: "18:00"}
	wagons := []store.Wagon{{ID: "w1", CoasterID: "c1", SeatCount: 30, WagonSpeed: 1.0}}

	r := Analyze(c, wagons)
	// floor(750/100) = 7
	assert.Equal(t, 7, r.MaxSafeWagons)

	// A window shorter than one round trip plus rest yields zero.
	c.HoursFrom = "9:00"
	c.HoursTo = "9:10"
	r = Analyze(c, wagons)
	assert.Equal(t, 0, r.MaxSafeWagons)
}

// TestOverstaffedFleet verifies the idle-fleet condition: far more wagons
// than demand needs, with capacity at more than double the target.
func TestOverstaffedFleet(t *testing.T) {
	c := store.Coaster{ID: "c1", StaffCount: 13, ClientCount: 50, TrackLength: 2000, HoursFrom: "8:00", HoursTo: "20:00"}
	var wagons []store.Wagon
	for _, id := range []string{"w1", "w2", "w3", "w4", "w5", "w6"} {
		wagons = append(wagons, store.Wagon{ID: id, CoasterID: "c1", SeatCount: 40, WagonSpeed: 2.0})
	}

	r := Analyze(c, wagons)

	require.False(t, r.ScheduleInfeasible)
	assert.Greater(t, len(wagons), r.RequiredWagons*2)
	assert.Greater(t, r.DailyCapacity, c.ClientCount*2)
	assert.Equal(t, StatusProblem, r.Status)
	assert.Equal(t, 100, r.FulfillmentPercent)
}

// TestAllNominal verifies a balanced coaster reports OK with exactly one
// detail line.
func TestAllNominal(t *testing.T) {
	c := store.Coaster{ID: "c1", StaffCount: 3, ClientCount: 400, TrackLength: 600, HoursFrom: "9:00", HoursTo: "18:00"}
	wagons := []store.Wagon{{ID: "w1", CoasterID: "c1", SeatCount: 30, WagonSpeed: 1.0}}

	r := Analyze(c, wagons)

	require.Equal(t, StatusOK, r.Status, "details: %v", r.Details)
	assert.Len(t, r.Details, 1)
}
