//go:build !cgo

package ledger

import _ "modernc.org/sqlite"

// Pure-Go builds serve local ledgers only.
const (
	driverName      = "sqlite"
	remoteSupported = false
)
