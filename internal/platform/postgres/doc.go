// Package postgres stores attachment metadata in PostgreSQL and owns the
// schema migrations. Driver errors leave this package already mapped onto
// the sentinels in internal/store.
package postgres
