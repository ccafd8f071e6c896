// Package bucket implements a self-tuning token bucket for pacing
// calls against rate-limited remote APIs.
//
// The bucket banks permits at its current rate, up to a cap of one
// enforcement window's worth. Every successful acquisition nudges the
// rate up exponentially toward MaxRate; a reported throttle response
// cuts the rate multiplicatively and forces a recovery pause. Reductions
// are debounced: at most one per Cooldown, and throttle reports from
// requests issued before the last adjustment are ignored. A bucket left
// idle for longer than its window forgets all learned growth and
// restarts at InitialRate.
package bucket
