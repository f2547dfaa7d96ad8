// Package types defines the entity types, dispatch report, transfer document,
// and standard error types for cmdrelay.
//
// A Command maps a spoken or typed name to an executable payload and the set
// of connection profile aliases it runs on. A Profile describes one remote
// target reachable over SSH. A Report is the aggregated outcome of running a
// command on every target it resolves to.
package types
