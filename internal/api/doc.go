// Package api serves a read-only HTTP view of a running generation job:
// a health probe, per-worker status with bucket counters, and run statistics.
package api
