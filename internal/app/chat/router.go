package chat

import (
	"fmt"
	"math"
	"time"

	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/filter"
)

const (
	// MaxContentBytes caps the size of one text message.
	MaxContentBytes = 5000

	// DefaultMapBaseURL is used when NewRouter is given an empty base.
	DefaultMapBaseURL = "https://google.com/maps"
)

// Acknowledgement statuses for accepted events.
const (
	StatusMessageReceived     = "message received by server"
	StatusCoordinatesReceived = "coordinates received by server"
)

// Clock returns the timestamp stamped on outbound messages.
type Clock func() time.Time

// Directive asks the transport to send one payload to one target set.
type Directive struct {
	Target  Target
	Type    MessageType
	Payload any
}

// Ack is the reply owed to the originating connection.
type Ack struct {
	Code   int
	Error  string
	Status string
}

// Outcome is the result of routing one inbound event. Directives must be
// delivered in order. A nil Ack means nothing is sent back, which is how events
// from connections without a joined user are silently dropped. Err is set
// whenever the event was rejected or ignored.
type Outcome struct {
	Directives []Directive
	Ack        *Ack
	Err        *errs.CustomError
}

// Router computes directives from inbound events. It reads the Registry and,
// through AddUser and RemoveUser, is the only writer to it; it keeps no state of
// its own.
type Router struct {
	registry   *user.Registry
	clock      Clock
	filter     filter.Filter
	mapBaseURL string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithClock overrides time.Now.
func WithClock(c Clock) RouterOption {
	return func(r *Router) { r.clock = c }
}

// WithFilter sets the content filter. The default accepts everything.
func WithFilter(f filter.Filter) RouterOption {
	return func(r *Router) { r.filter = f }
}

// WithMapBaseURL sets the prefix of shared location links.
func WithMapBaseURL(base string) RouterOption {
	return func(r *Router) { r.mapBaseURL = base }
}

// NewRouter returns a Router over reg.
func NewRouter(reg *user.Registry, opts ...RouterOption) *Router {
	r := &Router{
		registry:   reg,
		clock:      time.Now,
		filter:     filter.Nop,
		mapBaseURL: DefaultMapBaseURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mapBaseURL == "" {
		r.mapBaseURL = DefaultMapBaseURL
	}
	return r
}

// Registry returns the registry the router reads.
func (r *Router) Registry() *user.Registry {
	return r.registry
}

// HandleJoin joins id to room as username. On success it yields, in order, a
// welcome to the joiner, a join notice to the rest of the room, and a roster
// snapshot to the whole room.
func (r *Router) HandleJoin(id user.ConnectionID, username, room string) Outcome {
	u, err := r.registry.AddUser(id, username, room)
	if err != nil {
		return reject(err)
	}

	now := r.clock()
	return Outcome{
		Directives: []Directive{
			{
				Target:  Direct(id),
				Type:    TypeServerMessage,
				Payload: NewMessage(SystemUsername, fmt.Sprintf("welcome to the chat app %s!", u.Username), now),
			},
			{
				Target:  RoomExceptSelf(u.Room, id),
				Type:    TypeServerMessage,
				Payload: NewMessage(SystemUsername, fmt.Sprintf("%s has joined chat", u.Username), now),
			},
			r.rosterDirective(u.Room),
		},
		Ack: &Ack{},
	}
}

// HandleTextMessage broadcasts text to the sender's room unless it is too long or
// the filter rejects it.
func (r *Router) HandleTextMessage(id user.ConnectionID, text string) Outcome {
	sender, ok := r.registry.GetUser(id)
	if !ok {
		return ignore()
	}

	if len(text) > MaxContentBytes {
		return reject(errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes))
	}
	if r.filter.IsProfane(text) {
		return reject(errs.NewError(errs.ErrProfanityDetected))
	}

	return Outcome{
		Directives: []Directive{{
			Target:  Room(sender.Room),
			Type:    TypeServerMessage,
			Payload: NewMessage(sender.Username, text, r.clock()),
		}},
		Ack: &Ack{Status: StatusMessageReceived},
	}
}

// HandleLocation broadcasts a map link for coords to the sender's room. Both
// coordinates must be present and within range; zero is a valid value.
func (r *Router) HandleLocation(id user.ConnectionID, coords Coordinates) Outcome {
	sender, ok := r.registry.GetUser(id)
	if !ok {
		return ignore()
	}

	if !validCoordinates(coords) {
		return reject(errs.NewError(errs.ErrInvalidCoordinates))
	}

	return Outcome{
		Directives: []Directive{{
			Target:  Room(sender.Room),
			Type:    TypeLocationMessage,
			Payload: NewLocationMessage(sender.Username, BuildMapURL(r.mapBaseURL, *coords.Latitude, *coords.Longitude), r.clock()),
		}},
		Ack: &Ack{Status: StatusCoordinatesReceived},
	}
}

// HandleDisconnect removes id's user, if any, and tells the former room. The
// roster is computed after the removal.
func (r *Router) HandleDisconnect(id user.ConnectionID) Outcome {
	u, ok := r.registry.RemoveUser(id)
	if !ok {
		return Outcome{}
	}

	return Outcome{
		Directives: []Directive{
			{
				Target:  Room(u.Room),
				Type:    TypeServerMessage,
				Payload: NewMessage(SystemUsername, fmt.Sprintf("%s has left chat", u.Username), r.clock()),
			},
			r.rosterDirective(u.Room),
		},
	}
}

func (r *Router) rosterDirective(room string) Directive {
	return Directive{
		Target:  Room(room),
		Type:    TypeRoomData,
		Payload: RoomData{Room: room, Users: r.registry.GetUsersInRoom(room)},
	}
}

func validCoordinates(c Coordinates) bool {
	if c.Latitude == nil || c.Longitude == nil {
		return false
	}
	lat, lon := *c.Latitude, *c.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func reject(err *errs.CustomError) Outcome {
	return Outcome{
		Ack: &Ack{Code: err.Code, Error: err.Message},
		Err: err,
	}
}

func ignore() Outcome {
	return Outcome{Err: errs.NewError(errs.ErrNotJoined)}
}
