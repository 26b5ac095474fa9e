package core

// Room is a room the user belongs to, with its append-only message log.
type Room struct {
	ID       string
	Name     string
	messages []Message
}

func newRoom(id, name string) *Room {
	return &Room{ID: id, Name: name}
}

// RoomView is a read-only snapshot of a room handed to renderers.
// Active is derived from the ActiveRoom pointer at snapshot time.
type RoomView struct {
	ID       string
	Name     string
	Messages []Message
	Active   bool
}

func (r *Room) view() RoomView {
	msgs := make([]Message, len(r.messages))
	copy(msgs, r.messages)
	return RoomView{ID: r.ID, Name: r.Name, Messages: msgs}
}
