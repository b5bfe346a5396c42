package room

import "bingo-arena/internal/game"

// Event is one outbound message. Name is the wire type; Data is one of
// the payload structs below, a closed set.
type Event struct {
	Name string `json:"type"`
	Data any    `json:"data"`
}

// Broadcaster delivers events to connections and room-scoped groups.
// The realtime transport implements it; the registry never talks to
// sockets directly.
type Broadcaster interface {
	ToConnection(connID string, ev Event)
	ToRoom(code string, ev Event)
	// Detach removes a connection from a room's broadcast group.
	Detach(code, connID string)
}

// ScoreKeeper is the external ranked-record collaborator. Failures are
// logged and never affect game state.
type ScoreKeeper interface {
	RecordWin(username string, scoreDelta int) error
}

type PlayerInfo struct {
	Username  string `json:"username"`
	Connected bool   `json:"connected"`
	Ready     bool   `json:"ready"`
	Score     int    `json:"score"`
	Host      bool   `json:"host"`
}

type JoinedRoomPayload struct {
	RoomCode string       `json:"room_code"`
	Username string       `json:"username"`
	Started  bool         `json:"started"`
	Players  []PlayerInfo `json:"players"`
}

type GridAssignedPayload struct {
	Grid *game.Grid `json:"grid"`
}

type PlayerJoinedPayload struct {
	Username string       `json:"username"`
	Players  []PlayerInfo `json:"players"`
}

type PlayerLeftPayload struct {
	Username string       `json:"username"`
	Reason   string       `json:"reason"`
	Players  []PlayerInfo `json:"players"`
}

type PlayerDisconnectedPayload struct {
	Username string `json:"username"`
}

type PlayerReconnectedPayload struct {
	Username string `json:"username"`
}

type PlayerReadyPayload struct {
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
}

type GameStartedPayload struct {
	Players     []PlayerInfo `json:"players"`
	CurrentTurn string       `json:"current_turn"`
}

type TurnChangedPayload struct {
	Username   string `json:"username"`
	TurnIndex  int    `json:"turn_index"`
	DeadlineMS int64  `json:"deadline_ms"`
}

type NumberMarkedPayload struct {
	Number    int    `json:"number"`
	Automatic bool   `json:"automatic"`
	By        string `json:"by"`
}

type GameWonPayload struct {
	Winner string      `json:"winner"`
	Lines  []game.Line `json:"lines"`
	Score  int         `json:"score"`
}

type GameEndedPayload struct {
	Reason string `json:"reason"`
}

type RoomStatePayload struct {
	RoomCode    string       `json:"room_code"`
	Started     bool         `json:"started"`
	Ended       bool         `json:"ended"`
	Players     []PlayerInfo `json:"players"`
	Marked      []int        `json:"marked"`
	CurrentTurn string       `json:"current_turn,omitempty"`
	TurnIndex   int          `json:"turn_index"`
	Grid        *game.Grid   `json:"grid,omitempty"`
}

type ErrorPayload struct {
	Code string `json:"code"`
}

// pendingEvent is an event collected under the session lock and
// delivered after release, so state commits before any broadcast.
type pendingEvent struct {
	connID string // empty means room-wide
	room   string
	ev     Event
}

type pendingDetach struct {
	room   string
	connID string
}

type emitter struct {
	events   []pendingEvent
	detaches []pendingDetach
}

func (e *emitter) toConn(connID, name string, data any) {
	e.events = append(e.events, pendingEvent{connID: connID, ev: Event{Name: name, Data: data}})
}

func (e *emitter) toRoom(code, name string, data any) {
	e.events = append(e.events, pendingEvent{room: code, ev: Event{Name: name, Data: data}})
}

func (r *Registry) deliver(e *emitter) {
	bc := r.broadcaster()
	if bc == nil {
		return
	}
	for _, p := range e.events {
		if p.connID != "" {
			bc.ToConnection(p.connID, p.ev)
			continue
		}
		bc.ToRoom(p.room, p.ev)
	}
	// Detaches run after events so termination notices still reach the
	// members being dropped.
	for _, d := range e.detaches {
		bc.Detach(d.room, d.connID)
	}
}

func (e *emitter) detach(room, connID string) {
	e.detaches = append(e.detaches, pendingDetach{room: room, connID: connID})
}
