// Package quota tracks production quotas per bucket. Every attempt reserves
// a slot against its bucket when it is assigned and releases it when it
// completes, so concurrent workers never over-commit a bucket whose
// successes have not been reported yet.
package quota
