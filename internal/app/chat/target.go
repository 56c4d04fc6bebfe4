package chat

import (
	"fmt"

	"chatrelay/internal/app/user"
)

// TargetKind selects how a directive's recipients are computed.
type TargetKind int

const (
	// TargetDirect addresses exactly one connection.
	TargetDirect TargetKind = iota

	// TargetRoomExceptSelf addresses every member of a room except one connection.
	TargetRoomExceptSelf

	// TargetRoom addresses every member of a room.
	TargetRoom
)

func (k TargetKind) String() string {
	switch k {
	case TargetDirect:
		return "direct"
	case TargetRoomExceptSelf:
		return "room_except_self"
	case TargetRoom:
		return "room"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// Target is a recipient set, resolved lazily against the registry at delivery.
type Target struct {
	Kind         TargetKind
	Room         string
	ConnectionID user.ConnectionID
}

// Direct targets the connection id alone.
func Direct(id user.ConnectionID) Target {
	return Target{Kind: TargetDirect, ConnectionID: id}
}

// RoomExceptSelf targets the members of room other than id.
func RoomExceptSelf(room string, id user.ConnectionID) Target {
	return Target{Kind: TargetRoomExceptSelf, Room: room, ConnectionID: id}
}

// Room targets all members of room.
func Room(room string) Target {
	return Target{Kind: TargetRoom, Room: room}
}

// Resolve returns the connection ids t currently addresses, in room join order.
// A direct target resolves to its id whether or not that connection has joined.
func (t Target) Resolve(reg *user.Registry) []user.ConnectionID {
	if t.Kind == TargetDirect {
		return []user.ConnectionID{t.ConnectionID}
	}

	members := reg.GetUsersInRoom(t.Room)
	ids := make([]user.ConnectionID, 0, len(members))
	for _, m := range members {
		if t.Kind == TargetRoomExceptSelf && m.ConnectionID == t.ConnectionID {
			continue
		}
		ids = append(ids, m.ConnectionID)
	}
	return ids
}
