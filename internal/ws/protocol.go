package ws

// Inbound message catalog. Every client message is one of these; the
// dispatcher rejects anything outside the set before it can reach the
// session core.

type baseMessage struct {
	Type string `json:"type"`
}

type JoinRoomMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
	Username string `json:"username"`
}

type ToggleReadyMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
	Username string `json:"username"`
	IsReady  bool   `json:"is_ready"`
}

type StartGameMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
}

type MarkNumberMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
	Number   int    `json:"number"`
}

type EndTurnMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
}

type RejoinRoomMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
	Username string `json:"username"`
}

type RequestGridMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
}

type LeaveRoomMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
}
