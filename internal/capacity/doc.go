// Package capacity computes the staffing and equipment verdict for one
// attraction.
//
// # Overview
//
// Given a coaster's configuration and its current wagon roster, Analyze
// answers three questions: how many visitors the fleet can serve today, how
// many wagons and staff the target demand requires, and whether the current
// setup is therefore a PROBLEM or OK.
//
// Everything in this package is a pure function of its inputs. There is no
// hidden state, no clock, and no dependency on cluster coordination, which
// keeps the arithmetic trivially testable and lets the status reporter run
// it over every coaster on every tick.
//
// # Degenerate inputs
//
// Analyze never fails. An operating window of zero or negative length, an
// empty wagon roster, or unusable averages all collapse to defined outputs:
// zero daily capacity, the default wagon profile, or the insufficient-
// schedule outcome (Report.ScheduleInfeasible plus the legacy numeric
// sentinel InfeasibleWagonSentinel). An hoursTo earlier than hoursFrom means
// a zero-length day, not a schedule crossing midnight.
package capacity
