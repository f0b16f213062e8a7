package capacity

import (
	"fmt"
	"math"

	"github.com/dreamware/coasterd/internal/store"
)

// Operating constants for the capacity formulas.
const (
	// PersonnelPerWagon is the crew required to operate one wagon.
	PersonnelPerWagon = 2
	// BasePersonnel is the fixed crew required regardless of fleet size.
	BasePersonnel = 1
	// RestMinutesPerRound is the dwell time between consecutive rounds.
	RestMinutesPerRound = 5
	// DefaultWagonCapacity stands in for the average seat count when a
	// coaster has no wagons yet.
	DefaultWagonCapacity = 30
	// DefaultWagonSpeed (m/s) stands in for the average speed when a
	// coaster has no wagons yet.
	DefaultWagonSpeed = 1.0
	// MinSafetyDistanceM is the minimum spacing between wagons operating
	// on the track at the same time.
	MinSafetyDistanceM = 100
)

// InfeasibleWagonSentinel is the legacy required-wagon figure reported when
// the operating window is too short to complete even one round. Report.
// ScheduleInfeasible is the tagged form; the numeric sentinel is kept so
// downstream report consumers still see a figure far above any real fleet.
const InfeasibleWagonSentinel = 999

// Personnel verdicts.
const (
	PersonnelOK       = "OK"
	PersonnelShortage = "SHORTAGE"
	PersonnelExcess   = "EXCESS"
)

// Overall statuses.
const (
	StatusOK      = "OK"
	StatusProblem = "PROBLEM"
)

// Report is the full capacity verdict for one coaster with its current
// wagon roster. It is a pure function of the inputs: same coaster and
// wagons always produce the same report.
type Report struct {
	OperationMinutes   int
	DailyCapacity      int
	RequiredWagons     int
	ScheduleInfeasible bool
	MaxSafeWagons      int
	RequiredPersonnel  int
	PersonnelStatus    string
	PersonnelDiff      int
	FulfillmentPercent int
	Status             string
	Details            []string
}

// Minutes parses a wall-clock time of the form H:MM or HH:MM into minutes
// since midnight.
func Minutes(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad clock time %q: %w", clock, err)
	}
	return h*60 + m, nil
}

// Analyze computes the capacity report for one coaster.
//
// It never returns an error: malformed hours, an empty wagon roster, and a
// zero or negative operating window all degrade to defined sentinel outputs.
// A window where hoursTo precedes hoursFrom counts as zero operating minutes,
// not as a schedule that crosses midnight.
func Analyze(c store.Coaster, wagons []store.Wagon) Report {
	from, errFrom := Minutes(c.HoursFrom)
	to, errTo := Minutes(c.HoursTo)
	opMinutes := 0
	if errFrom == nil && errTo == nil {
		opMinutes = to - from
	}

	avgCapacity, avgSpeed := fleetAverages(wagons)

	r := Report{OperationMinutes: opMinutes}
	r.DailyCapacity = dailyCapacity(c, wagons, opMinutes)
	r.RequiredWagons, r.ScheduleInfeasible = requiredWagons(c, avgCapacity, avgSpeed, opMinutes)
	r.MaxSafeWagons = maxSafeWagons(c, avgSpeed, opMinutes)
	r.RequiredPersonnel = BasePersonnel + r.RequiredWagons*PersonnelPerWagon

	r.PersonnelStatus, r.PersonnelDiff = personnelVerdict(c.StaffCount, r.RequiredPersonnel)
	r.FulfillmentPercent = fulfillment(r.DailyCapacity, c.ClientCount)
	r.Status, r.Details = overall(c, wagons, r)
	return r
}

// fleetAverages returns the arithmetic mean seat count and speed across the
// roster, falling back to the defaults for an empty roster.
func fleetAverages(wagons []store.Wagon) (capacity, speed float64) {
	if len(wagons) == 0 {
		return DefaultWagonCapacity, DefaultWagonSpeed
	}
	var seats, speeds float64
	for _, w := range wagons {
		seats += float64(w.SeatCount)
		speeds += w.WagonSpeed
	}
	n := float64(len(wagons))
	return seats / n, speeds / n
}

// roundTripMinutes is the time for one full traversal of the track at the
// given speed.
func roundTripMinutes(trackLength, speed float64) float64 {
	return (trackLength / speed) / 60
}

// dailyCapacity computes how many visitors the current roster can serve in
// one operating day. Zero when the window is degenerate or no wagons exist.
func dailyCapacity(c store.Coaster, wagons []store.Wagon, opMinutes int) int {
	if opMinutes <= 0 || len(wagons) == 0 {
		return 0
	}
	_, avgSpeed := fleetAverages(wagons)
	rtt := roundTripMinutes(c.TrackLength, avgSpeed)

	// Reserve one round-trip so the last dispatch finishes before close.
	safeMinutes := math.Max(0, float64(opMinutes)-rtt)
	roundsPerWagon := math.Floor(safeMinutes / (rtt + RestMinutesPerRound))

	totalSeats := 0
	for _, w := range wagons {
		totalSeats += w.SeatCount
	}
	return int(math.Floor(float64(totalSeats) * roundsPerWagon * float64(len(wagons))))
}

// requiredWagons computes how many wagons of fleet-average capacity and speed
// are needed to serve the target client count. The second return reports the
// insufficient-schedule condition: the operating window cannot fit a single
// round, so no fleet size can meet the target.
func requiredWagons(c store.Coaster, avgCapacity, avgSpeed float64, opMinutes int) (int, bool) {
	if avgCapacity <= 0 || avgSpeed <= 0 {
		return 1, false
	}
	rtt := roundTripMinutes(c.TrackLength, avgSpeed)
	safeMinutes := math.Max(0, float64(opMinutes)-rtt)
	roundsPerDay := math.Floor(safeMinutes / (rtt + RestMinutesPerRound))
	if roundsPerDay <= 0 {
		return InfeasibleWagonSentinel, true
	}
	need := math.Ceil(float64(c.ClientCount) / roundsPerDay / avgCapacity)
	if need < 1 {
		need = 1
	}
	return int(need), false
}

// maxSafeWagons bounds how many wagons may run simultaneously given the
// minimum safety spacing. Zero signals there is not enough time in the
// window for even one full round trip.
func maxSafeWagons(c store.Coaster, avgSpeed float64, opMinutes int) int {
	if avgSpeed <= 0 {
		return 0
	}
	oneWay := roundTripMinutes(c.TrackLength, avgSpeed) / 2
	if float64(opMinutes) <= 2*oneWay+RestMinutesPerRound {
		return 0
	}
	safe := math.Floor(c.TrackLength / MinSafetyDistanceM)
	if safe < 1 {
		safe = 1
	}
	return int(safe)
}

// personnelVerdict classifies staffing against the requirement. Excess kicks
// in above 1.5x the requirement; the reported difference is always absolute.
func personnelVerdict(staff, required int) (string, int) {
	diff := staff - required
	if diff < 0 {
		return PersonnelShortage, -diff
	}
	if float64(staff) > float64(required)*1.5 {
		return PersonnelExcess, diff
	}
	return PersonnelOK, diff
}

// fulfillment expresses daily capacity as a percentage of the client target,
// capped at 100.
func fulfillment(daily, clients int) int {
	if daily <= 0 {
		return 0
	}
	if clients <= 0 {
		return 100
	}
	pct := math.Round(float64(daily) / float64(clients) * 100)
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}

// overall folds the individual verdicts into one status with one detail line
// per triggered condition.
func overall(c store.Coaster, wagons []store.Wagon, r Report) (string, []string) {
	var details []string

	switch r.PersonnelStatus {
	case PersonnelShortage:
		details = append(details, fmt.Sprintf("missing %d staff (%d of %d)", r.PersonnelDiff, c.StaffCount, r.RequiredPersonnel))
	case PersonnelExcess:
		details = append(details, fmt.Sprintf("%d staff over requirement (%d of %d)", r.PersonnelDiff, c.StaffCount, r.RequiredPersonnel))
	}

	count := len(wagons)
	if count < r.RequiredWagons {
		if r.ScheduleInfeasible {
			details = append(details, "operating window too short to complete a single round")
		} else {
			details = append(details, fmt.Sprintf("missing %d wagons (%d of %d)", r.RequiredWagons-count, count, r.RequiredWagons))
		}
	} else if count > r.RequiredWagons*2 && r.DailyCapacity > c.ClientCount*2 {
		details = append(details, fmt.Sprintf("%d wagons idle beyond demand (%d needed)", count-r.RequiredWagons, r.RequiredWagons))
	}

	if count > r.MaxSafeWagons {
		details = append(details, fmt.Sprintf("%d wagons exceed the safe track limit of %d", count, r.MaxSafeWagons))
	}

	if len(details) == 0 {
		return StatusOK, []string{"staffing and fleet within operating limits"}
	}
	return StatusProblem, details
}
