//go:build cgo

package ledger

import _ "github.com/tursodatabase/go-libsql"

const (
	driverName      = "libsql"
	remoteSupported = true
)
