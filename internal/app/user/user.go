/*
Package user holds the identity of a joined chat participant and the Registry that
tracks which connection belongs to which user and room.
*/
package user

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ConnectionID identifies one transport connection for its whole lifetime. It is
// assigned by the transport layer and never reused.
type ConnectionID string

// User is a connection that has successfully joined a room. Values are immutable;
// a room or name change is a removal followed by a new join.
type User struct {
	// ConnectionID is never sent to other clients.
	ConnectionID ConnectionID `json:"-"`

	// Username is the trimmed display name as the user typed it.
	Username string `json:"username"`

	// Room is the trimmed room name as the user typed it.
	Room string `json:"room"`
}

// Normalize returns the comparison key for a username or room name: surrounding
// whitespace removed, Unicode NFC, then case folded. Display values are never
// normalized.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(s))
}
