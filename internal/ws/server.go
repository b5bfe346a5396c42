package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"bingo-arena/internal/room"
)

type client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	username string
	room     string
}

// Server is the realtime transport: it upgrades connections, decodes
// the typed message set, routes actions into the room registry, and
// implements room.Broadcaster for outbound delivery.
type Server struct {
	registry *room.Registry
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*client
	rooms map[string]map[string]*client
}

func NewServer(registry *room.Registry) *Server {
	return &Server{
		registry: registry,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		conns:    map[string]*client{},
		rooms:    map[string]map[string]*client{},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 16)}
	s.mu.Lock()
	s.conns[c.id] = c
	connections.Set(float64(len(s.conns)))
	s.mu.Unlock()

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(c, msg)
	}
}

// dispatch handles exactly one inbound message. A panic inside a
// handler is converted into an error event so one misbehaving client
// cannot take the room down.
func (s *Server) dispatch(c *client, msg []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Any("panic", rec).Str("conn_id", c.id).Msg("action handler panicked")
			s.sendError(c, "internal_error")
		}
	}()

	var base baseMessage
	if err := json.Unmarshal(msg, &base); err != nil {
		s.sendError(c, "invalid_message")
		return
	}
	messagesTotal.WithLabelValues(base.Type).Inc()

	switch base.Type {
	case "join-room":
		var m JoinRoomMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(c, "invalid_message")
			return
		}
		s.handleJoin(c, m.RoomCode, m.Username, false)
	case "rejoin-room":
		var m RejoinRoomMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(c, "invalid_message")
			return
		}
		s.handleJoin(c, m.RoomCode, m.Username, true)
	case "toggle-ready":
		var m ToggleReadyMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(c, "invalid_message")
			return
		}
		s.result(c, s.registry.ToggleReady(m.RoomCode, m.Username, m.IsReady))
	case "start-game":
		var m StartGameMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(c, "invalid_message")
			return
		}
		s.result(c, s.registry.StartGame(m.RoomCode, c.id))
	case "mark-number":
		var m MarkNumberMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(c, "invalid_message")
			return
		}
		s.result(c, s.registry.MarkNumber(m.RoomCode, c.id, m.Number))
	case "end-turn":
		var m EndTurnMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(c, "invalid_message")
			return
		}
		s.result(c, s.registry.EndTurn(m.RoomCode, c.id))
	case "request-grid":
		var m RequestGridMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(c, "invalid_message")
			return
		}
		s.result(c, s.registry.RequestGrid(m.RoomCode, c.id))
	case "leave-room":
		var m LeaveRoomMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(c, "invalid_message")
			return
		}
		s.registry.Disconnect(m.RoomCode, c.id, room.ReasonLeft, true)
	default:
		s.sendError(c, "unknown_message_type")
	}
}

// handleJoin covers join-room and rejoin-room. The connection enters
// the room's broadcast group before the registry call so the private
// replies reach it, and leaves again if the action is rejected.
func (s *Server) handleJoin(c *client, code, username string, rejoin bool) {
	s.attach(c, code)
	var err error
	if rejoin {
		err = s.registry.Rejoin(code, username, c.id)
	} else {
		err = s.registry.Join(code, username, c.id)
	}
	if err != nil {
		s.Detach(code, c.id)
		s.sendError(c, errorCode(err))
		return
	}
	c.username = username
}

func (s *Server) result(c *client, err error) {
	if err != nil {
		s.sendError(c, errorCode(err))
	}
}

func (s *Server) attach(c *client, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group := s.rooms[code]
	if group == nil {
		group = map[string]*client{}
		s.rooms[code] = group
	}
	group[c.id] = c
	c.room = code
}

func (s *Server) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.conns, c.id)
	connections.Set(float64(len(s.conns)))
	code := c.room
	if code != "" {
		if group := s.rooms[code]; group != nil {
			delete(group, c.id)
			if len(group) == 0 {
				delete(s.rooms, code)
			}
		}
	}
	s.mu.Unlock()
	safeClose(c.send)

	if code != "" {
		// The socket dropped without an explicit leave: transient.
		s.registry.Disconnect(code, c.id, room.ReasonConnectionLost, false)
	}
}

// ToConnection implements room.Broadcaster.
func (s *Server) ToConnection(connID string, ev room.Event) {
	s.mu.Lock()
	c := s.conns[connID]
	s.mu.Unlock()
	if c == nil {
		return
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	safeSend(c.send, msg)
}

// ToRoom implements room.Broadcaster.
func (s *Server) ToRoom(code string, ev room.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.Lock()
	members := make([]*client, 0, len(s.rooms[code]))
	for _, c := range s.rooms[code] {
		members = append(members, c)
	}
	s.mu.Unlock()
	for _, c := range members {
		safeSend(c.send, msg)
	}
}

// Detach implements room.Broadcaster.
func (s *Server) Detach(code, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if group := s.rooms[code]; group != nil {
		if c := group[connID]; c != nil && c.room == code {
			c.room = ""
		}
		delete(group, connID)
		if len(group) == 0 {
			delete(s.rooms, code)
		}
	}
}

func (s *Server) sendError(c *client, code string) {
	msg, _ := json.Marshal(room.Event{Name: "error", Data: room.ErrorPayload{Code: code}})
	safeSend(c.send, msg)
}

var knownErrors = []error{
	room.ErrRoomNotFound,
	room.ErrGameNotStarted,
	room.ErrGameStarted,
	room.ErrGameEnded,
	room.ErrNotYourTurn,
	room.ErrAlreadyMarked,
	room.ErrInvalidNumber,
	room.ErrNotHost,
	room.ErrNotReady,
	room.ErrUnknownParticipant,
	room.ErrInvalidDimensions,
	room.ErrInvalidUsername,
}

func errorCode(err error) string {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal_error"
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
