//go:build cgo_sqlite

package store

import (
	_ "github.com/mattn/go-sqlite3" // CGO driver, opt-in via the cgo_sqlite build tag
)

// sqlDriverName is the database/sql driver name registered for the build.
// Builds tagged cgo_sqlite use mattn/go-sqlite3 for environments where the
// CGO toolchain is available and its FTS5/extension support is wanted.
const sqlDriverName = "sqlite3"
