// Package testdb provides helpers for tests that need a real PostgreSQL
// database. Tests call GetTestDBWithT, which skips the test when no
// database URL is configured outside CI, applies all migrations and
// registers cleanup.
//
// The package reads QUIZFORGE_TEST_DB_URL, then DATABASE_URL.
package testdb
