/*
Package randx generates identifiers: connection ids for the transport layer and
proof-of-work nonces and tokens.
*/
package randx

import "github.com/google/uuid"

// ConnectionID returns a new random (v4) UUID string used to key one WebSocket
// connection for its lifetime.
func ConnectionID() string {
	return uuid.NewString()
}

// Token returns an unguessable opaque token.
func Token() string {
	return uuid.NewString()
}
