//go:build !cgo_sqlite

package store

import (
	_ "modernc.org/sqlite" // pure Go driver, no CGO; default build
)

// sqlDriverName is the database/sql driver name registered for the build.
// The default build uses modernc.org/sqlite so the binary stays CGO-free.
const sqlDriverName = "sqlite"
