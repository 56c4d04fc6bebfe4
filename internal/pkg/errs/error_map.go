package errs

import "net/http"

// errorMap holds the template for every known code. A zero Status means 200,
// which is what WebSocket acknowledgements and JSON envelopes use.
var errorMap = map[int]CustomError{
	ErrInvalidParams:          {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:   {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:      {Code: ErrInvalidJSONFormat, Message: "Malformed JSON.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:     {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:      {Code: ErrRateLimitExceeded, Message: "Too many requests. Please slow down.", Status: http.StatusTooManyRequests},
	ErrUnsupportedMessageType: {Code: ErrUnsupportedMessageType, Message: "Unsupported message type %q."},

	ErrUsernameRoomRequired:  {Code: ErrUsernameRoomRequired, Message: "Username and room are required!"},
	ErrUsernameInUse:         {Code: ErrUsernameInUse, Message: "Username is in use!"},
	ErrAlreadyJoined:         {Code: ErrAlreadyJoined, Message: "You have already joined a room."},
	ErrNotJoined:             {Code: ErrNotJoined, Message: "Join a room first."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is longer than %d bytes."},
	ErrProfanityDetected:     {Code: ErrProfanityDetected, Message: "profanity detected"},
	ErrInvalidCoordinates:    {Code: ErrInvalidCoordinates, Message: "problem with coordinates"},

	ErrPowChallengeRequired: {Code: ErrPowChallengeRequired, Message: "Verification required. Please try again.", Status: http.StatusForbidden},
	ErrPowChallengeInvalid:  {Code: ErrPowChallengeInvalid, Message: "Verification failed. Please try again.", Status: http.StatusForbidden},
	ErrPowDisabled:          {Code: ErrPowDisabled, Message: "Verification is not enabled on this server.", Status: http.StatusNotFound},

	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
