// Package engine wires command validation, the question decider, event
// validation, and the atomic store commit for ledger submissions.
//
// This package is the seam between the pure domain (question, ledger) and
// its hosts: it turns a caller's submission into a decision, persists the
// resulting notification with the counter and record updates, and fans the
// committed notification out to in-process sinks.
package engine
