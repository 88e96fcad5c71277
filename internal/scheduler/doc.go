// Package scheduler keeps up to MaxWorkers attempts running until every
// bucket target is met, no bucket has capacity left, the circuit breaker
// trips, a fatal infrastructure error occurs, or the context is cancelled.
//
// A single coordinating goroutine owns assignment and bookkeeping. Each
// attempt runs in its own goroutine and reports back on a results channel,
// so completions are processed in the order they finish. Quota reservations,
// worker status records and the consecutive-failure counter are all updated
// under the scheduler's lock; the quota tracker's own lock is always taken
// second.
package scheduler
