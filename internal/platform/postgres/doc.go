// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver, and applies the embedded goose migrations that
// create the items, item_tags and rejections tables.
package postgres
