// Package status assembles the system-wide operational report: every
// coaster's capacity verdict plus the cluster membership view, with
// fleet-wide totals. The report is a pure function of the record store and
// the coordinator snapshot; a cancellable ticker loop forwards periodic
// reports to whatever sink the caller attaches.
package status
