// Package runner executes a work function over large ordered batches
// of inputs against rate-limited, unreliable remote APIs.
//
// A Runner fans work out to a fixed-size pool of workers (or runs it
// strictly sequentially), applies a per-item retry policy and a
// job-level abort-vs-continue policy, and always returns one result
// per input in input order, no matter how the run ends. Items that
// permanently fail or are never dispatched receive a caller-supplied
// fallback value; individual item failures never escape Run. The only
// early-termination paths are the exit-on-error policy and graceful
// cancellation via context or OS signal, both of which still return
// full-length, fallback-filled results.
//
// Rate limiting is composed at the work-function level: wrap the
// function with the limit package before handing it to Build.
package runner
