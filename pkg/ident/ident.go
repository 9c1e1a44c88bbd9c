// Package ident mints the opaque 32-hex-character identifiers used for
// users, rooms, messages and websocket connections.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh 32-character lowercase hex identifier
// (a UUIDv4 with the dashes stripped).
func New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
