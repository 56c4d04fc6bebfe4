package user

import (
	"slices"
	"strings"
	"sync"

	"chatrelay/internal/pkg/errs"
)

// RoomSummary describes one non-empty room.
type RoomSummary struct {
	// Name is the room name as typed by its longest-present member.
	Name  string `json:"name"`
	Users int    `json:"users"`
}

// Registry is the in-memory membership store. It is the only source of truth for
// who is in which room. All methods are safe for concurrent use; every
// read-modify-write happens under a single lock.
type Registry struct {
	mu sync.RWMutex

	// byConn maps a connection to its joined user.
	byConn map[ConnectionID]User

	// rooms maps a normalized room name to its members in join order. Entries
	// are deleted when they become empty.
	rooms map[string][]User
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[ConnectionID]User),
		rooms:  make(map[string][]User),
	}
}

// AddUser joins the connection id to room under username. Both names are trimmed
// and stored as typed; uniqueness is checked on their normalized forms.
//
// It fails with ErrUsernameRoomRequired when either name is blank, ErrAlreadyJoined
// when id already has a user, and ErrUsernameInUse when the room already holds the
// same normalized username. A failed call leaves the registry unchanged.
func (r *Registry) AddUser(id ConnectionID, rawUsername, rawRoom string) (User, *errs.CustomError) {
	u := User{
		ConnectionID: id,
		Username:     strings.TrimSpace(rawUsername),
		Room:         strings.TrimSpace(rawRoom),
	}

	nameKey := Normalize(u.Username)
	roomKey := Normalize(u.Room)
	if nameKey == "" || roomKey == "" {
		return User{}, errs.NewError(errs.ErrUsernameRoomRequired)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[id]; ok {
		return User{}, errs.NewError(errs.ErrAlreadyJoined)
	}

	for _, member := range r.rooms[roomKey] {
		if Normalize(member.Username) == nameKey {
			return User{}, errs.NewError(errs.ErrUsernameInUse)
		}
	}

	r.byConn[id] = u
	r.rooms[roomKey] = append(r.rooms[roomKey], u)

	return u, nil
}

// RemoveUser removes and returns the user joined on id. The second result is false
// when id had no user, which makes repeated calls harmless.
func (r *Registry) RemoveUser(id ConnectionID) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byConn[id]
	if !ok {
		return User{}, false
	}
	delete(r.byConn, id)

	roomKey := Normalize(u.Room)
	members := slices.DeleteFunc(r.rooms[roomKey], func(m User) bool {
		return m.ConnectionID == id
	})
	if len(members) == 0 {
		delete(r.rooms, roomKey)
	} else {
		r.rooms[roomKey] = members
	}

	return u, true
}

// GetUser returns the user joined on id.
func (r *Registry) GetUser(id ConnectionID) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byConn[id]
	return u, ok
}

// GetUsersInRoom returns the members of room in join order. The room name is
// compared in normalized form. The result is a copy and never nil.
func (r *Registry) GetUsersInRoom(room string) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[Normalize(room)]
	out := make([]User, len(members))
	copy(out, members)
	return out
}

// Rooms lists the non-empty rooms ordered by normalized name.
func (r *Registry) Rooms() []RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.rooms))
	for k := range r.rooms {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]RoomSummary, 0, len(keys))
	for _, k := range keys {
		members := r.rooms[k]
		out = append(out, RoomSummary{Name: members[0].Room, Users: len(members)})
	}
	return out
}

// Len returns the number of joined users across all rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
