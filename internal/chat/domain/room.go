package domain

import "strings"

// Room is a named channel that scopes message visibility and presence.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var rooms = []Room{
	{ID: "general", Name: "General", Description: "General discussion"},
	{ID: "tech", Name: "Technology", Description: "Tech talk"},
	{ID: "random", Name: "Random", Description: "Random chat"},
}

// Rooms returns the static room catalog in display order.
func Rooms() []Room {
	out := make([]Room, len(rooms))
	copy(out, rooms)
	return out
}

// DefaultRoom is the room every session starts in.
func DefaultRoom() Room {
	return rooms[0]
}

// RoomByID resolves a room id against the catalog.
func RoomByID(roomID string) (Room, bool) {
	roomID = strings.TrimSpace(roomID)
	for _, room := range rooms {
		if room.ID == roomID {
			return room, true
		}
	}
	return Room{}, false
}
