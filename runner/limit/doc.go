// Package limit wraps units of work so that every invocation first
// clears a rate-limiting gate, and throttle responses from the remote
// service are fed back into the gate and retried instead of surfacing
// to the caller.
//
// Detection is decoupled from reaction: the caller describes what a
// throttle error looks like for its provider (a set of sentinel errors
// or a predicate), and the gate decides how to react. The adaptive
// gate lives in the bucket package; a fixed-budget gate built on
// golang.org/x/time/rate is provided here for providers whose limits
// are known up front.
package limit
