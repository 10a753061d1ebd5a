package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"

	"safespace/models"
)

const (
	namespace = "/"

	// EventJoin subscribes a connection to a chat room.
	EventJoin = "join"
	// EventJoinError tells a client its join was refused.
	EventJoinError = "joinError"
	// EventLeave unsubscribes a connection from a chat room.
	EventLeave = "leave"
	// EventNewMessage carries a stored message to the room.
	EventNewMessage = "newMessage"

	joinTimeout = 5 * time.Second
)

var (
	// ErrMissingRoom is returned for a join without chatRoomId.
	ErrMissingRoom = errors.New("missing chatRoomId")
	// ErrMissingToken is returned for a join without a session token.
	ErrMissingToken = errors.New("missing token")
	// ErrNotParticipant is returned when the session user is not in the room.
	ErrNotParticipant = errors.New("not a participant")
)

// Members resolves the session behind a join and the room it asks for.
type Members interface {
	CurrentUser(ctx context.Context, sessionID string) (models.User, error)
	ChatRoom(ctx context.Context, chatRoomID string) (models.ChatRoom, error)
}

// Server pushes chat messages to clients subscribed to a room. Rooms are
// named by chat room id.
type Server struct {
	io      *socketio.Server
	members Members
	logger  *zap.Logger
}

// NewServer initializes a Socket.IO server with the chat room handlers.
// Joins carry the session token and are accepted for participants only.
func NewServer(members Members, logger *zap.Logger) *Server {
	s := &Server{
		io:      socketio.NewServer(nil),
		members: members,
		logger:  logger.Named("socket"),
	}

	s.io.OnConnect(namespace, func(c socketio.Conn) error {
		s.logger.Debug("Socket connected", zap.String("socketId", c.ID()))
		return nil
	})

	s.io.OnEvent(namespace, EventJoin, func(c socketio.Conn, data map[string]string) {
		ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
		defer cancel()

		room, err := s.authorizeJoin(ctx, data)
		if err != nil {
			s.logger.Info("Join rejected", zap.String("socketId", c.ID()), zap.Error(err))
			c.Emit(EventJoinError, err.Error())
			return
		}
		c.Join(room)
		s.logger.Debug("Socket joined room",
			zap.String("socketId", c.ID()),
			zap.String("chatRoomId", room))
	})

	s.io.OnEvent(namespace, EventLeave, func(c socketio.Conn, data map[string]string) {
		if room := roomOf(data); room != "" {
			c.Leave(room)
		}
	})

	s.io.OnError(namespace, func(c socketio.Conn, err error) {
		s.logger.Warn("Socket error", zap.Error(err))
	})

	s.io.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		s.logger.Debug("Socket disconnected",
			zap.String("socketId", c.ID()),
			zap.String("reason", reason))
	})

	return s
}

func roomOf(data map[string]string) string {
	return data["chatRoomId"]
}

// authorizeJoin returns the room a join may subscribe to. The session in
// data["token"] must resolve to one of the room's participants.
func (s *Server) authorizeJoin(ctx context.Context, data map[string]string) (string, error) {
	roomID := roomOf(data)
	if roomID == "" {
		return "", ErrMissingRoom
	}
	if data["token"] == "" {
		return "", ErrMissingToken
	}

	user, err := s.members.CurrentUser(ctx, data["token"])
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	room, err := s.members.ChatRoom(ctx, roomID)
	if err != nil {
		return "", fmt.Errorf("load room %s: %w", roomID, err)
	}
	if !room.HasParticipant(user.ID) {
		return "", fmt.Errorf("%w: user %s, room %s", ErrNotParticipant, user.ID, roomID)
	}
	return room.ID, nil
}

// Serve runs the connection loop until Close.
func (s *Server) Serve() error {
	return s.io.Serve()
}

// Close stops the server and drops every connection.
func (s *Server) Close() error {
	return s.io.Close()
}

// Handler is mounted at /socket.io/.
func (s *Server) Handler() http.Handler {
	return s.io
}

// NotifyMessage broadcasts msg to its chat room.
func (s *Server) NotifyMessage(msg models.Message) {
	if !s.io.BroadcastToRoom(namespace, msg.ChatRoomID, EventNewMessage, msg) {
		s.logger.Debug("No listeners for room", zap.String("chatRoomId", msg.ChatRoomID))
	}
}
