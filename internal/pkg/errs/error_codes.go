/*
Package errs defines the relay's numeric error codes and the CustomError type that
carries them to HTTP responses and WebSocket acknowledgements.
*/
package errs

// 1xxx: request and frame handling
const (
	// ErrInvalidParams indicates a payload that parsed but failed validation.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates a request Content-Type other than JSON.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a body or frame that is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after the JSON value.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates the per-IP or per-connection limit was hit.
	ErrRateLimitExceeded = 1007

	// ErrUnsupportedMessageType indicates an inbound frame with an unknown type.
	ErrUnsupportedMessageType = 1008
)

// 2xxx: membership and content
const (
	// ErrUsernameRoomRequired indicates an empty username or room after trimming.
	ErrUsernameRoomRequired = 2101

	// ErrUsernameInUse indicates the username is already taken in that room.
	ErrUsernameInUse = 2102

	// ErrAlreadyJoined indicates the connection has already joined a room.
	ErrAlreadyJoined = 2103

	// ErrNotJoined indicates an event from a connection with no joined user.
	// It is never sent to clients.
	ErrNotJoined = 2104

	// ErrMessageContentTooLong indicates a text message over the size limit.
	ErrMessageContentTooLong = 2201

	// ErrProfanityDetected indicates the content filter rejected the text.
	ErrProfanityDetected = 2202

	// ErrInvalidCoordinates indicates a missing or out-of-range latitude/longitude.
	ErrInvalidCoordinates = 2203
)

// 3xxx: abuse protection
const (
	// ErrPowChallengeRequired indicates the upgrade request carried no valid proof token.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates the submitted proof did not verify.
	ErrPowChallengeInvalid = 3002

	// ErrPowDisabled indicates proof-of-work endpoints were called while disabled.
	ErrPowDisabled = 3003
)

// 5xxx: internal
const (
	// ErrUnknown is an unclassified server error.
	ErrUnknown = 5000
)
