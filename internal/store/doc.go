// Package store defines the persistence ports of a generation run: where
// accepted items go and where rejections are audited. The postgres package
// provides the database-backed implementation; this package provides a
// logging fallback for runs without a database.
package store
