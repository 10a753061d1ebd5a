package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"safespace/models"
	"safespace/store"
	"safespace/utils"
)

// ChatService manages chat rooms and messages.
type ChatService struct {
	reader
	maxLookups int
	now        func() time.Time
	logger     *zap.Logger
}

// NewChatService creates a ChatService. maxLookups bounds concurrent
// profile lookups; zero means unbounded.
func NewChatService(docs store.Documents, retry utils.RetryOptions, maxLookups int, logger *zap.Logger) *ChatService {
	return &ChatService{
		reader:     reader{docs: docs, retry: retry},
		maxLookups: maxLookups,
		now:        time.Now,
		logger:     logger.Named("chat"),
	}
}

// CreateChatRoom opens a room. Participants are fixed from here on.
func (s *ChatService) CreateChatRoom(ctx context.Context, participants []string) (models.ChatRoom, error) {
	if len(participants) == 0 {
		return models.ChatRoom{}, fmt.Errorf("%w: a chat room needs participants", ErrValidation)
	}
	for _, p := range participants {
		if p == "" {
			return models.ChatRoom{}, fmt.Errorf("%w: empty participant id", ErrValidation)
		}
	}

	now := store.FormatTime(s.now())
	doc, err := s.docs.Create(ctx, models.ChatRoomsCollection, store.UniqueID, map[string]any{
		"participants":    participants,
		"lastMessage":     nil,
		"lastMessageTime": now,
		"createdAt":       now,
	})
	if err != nil {
		return models.ChatRoom{}, classify(err)
	}
	return decodeDocument[models.ChatRoom](doc)
}

// GetChatRoom returns one room.
func (s *ChatService) GetChatRoom(ctx context.Context, chatRoomID string) (models.ChatRoom, error) {
	if err := requireIDs(map[string]string{"chatRoomId": chatRoomID}); err != nil {
		return models.ChatRoom{}, err
	}
	return getDocument[models.ChatRoom](ctx, s.reader, models.ChatRoomsCollection, chatRoomID)
}

// GetMessages lists a room's messages, oldest first.
func (s *ChatService) GetMessages(ctx context.Context, chatRoomID string) (models.DocumentList[models.Message], error) {
	if err := requireIDs(map[string]string{"chatRoomId": chatRoomID}); err != nil {
		return models.DocumentList[models.Message]{}, err
	}
	return listAll[models.Message](ctx, s.reader, models.MessagesCollection,
		store.Equal("chatRoomId", chatRoomID),
		store.OrderAsc("createdAt"),
	)
}

// SendMessage appends the message, then copies it onto the room's last
// message fields. The two writes are not atomic. When only the first
// succeeds the message is returned with a *PartialWriteError and the room
// preview stays stale. Each call creates a new message.
func (s *ChatService) SendMessage(ctx context.Context, form models.NewMessage) (models.Message, error) {
	if err := validateForm(form); err != nil {
		return models.Message{}, err
	}
	if form.CreatedAt == "" {
		form.CreatedAt = store.FormatTime(s.now())
	}

	doc, err := s.docs.Create(ctx, models.MessagesCollection, store.UniqueID, map[string]any{
		"chatRoomId": form.ChatRoomID,
		"senderId":   form.SenderID,
		"content":    form.Content,
		"createdAt":  form.CreatedAt,
	})
	if err != nil {
		s.logger.Error("Failed to store message", zap.String("chatRoomID", form.ChatRoomID), zap.Error(err))
		return models.Message{}, classify(err)
	}

	message, err := decodeDocument[models.Message](doc)
	if err != nil {
		return models.Message{}, err
	}

	_, err = s.docs.Update(ctx, models.ChatRoomsCollection, form.ChatRoomID, map[string]any{
		"lastMessage":     form.Content,
		"lastMessageTime": form.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("Message stored but room preview not updated",
			zap.String("chatRoomID", form.ChatRoomID),
			zap.String("messageID", message.ID),
			zap.Error(err))
		return message, &PartialWriteError{
			Completed: "message",
			Failed:    "chat room update",
			Err:       classify(err),
		}
	}

	return message, nil
}

// GetChatRooms lists the rooms userID takes part in, each joined with the
// first other participant's profile. Rooms without another participant are
// returned with no OtherParticipant. One failed lookup fails the whole list.
func (s *ChatService) GetChatRooms(ctx context.Context, userID string) (models.DocumentList[models.ChatRoomView], error) {
	if err := requireIDs(map[string]string{"userId": userID}); err != nil {
		return models.DocumentList[models.ChatRoomView]{}, err
	}

	rooms, err := listAll[models.ChatRoom](ctx, s.reader, models.ChatRoomsCollection, store.Equal("participants", userID))
	if err != nil {
		return models.DocumentList[models.ChatRoomView]{}, err
	}

	views := make([]models.ChatRoomView, len(rooms.Documents))
	err = gather(ctx, s.maxLookups, len(rooms.Documents), func(ctx context.Context, i int) error {
		room := rooms.Documents[i]
		views[i] = models.ChatRoomView{ChatRoom: room}

		otherID := otherParticipant(room.Participants, userID)
		if otherID == "" {
			return nil
		}
		other, err := getDocument[models.User](ctx, s.reader, models.UsersCollection, otherID)
		if err != nil {
			return fmt.Errorf("participant %s of room %s: %w", otherID, room.ID, err)
		}
		views[i].OtherParticipant = &other
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to resolve chat rooms", zap.String("userID", userID), zap.Error(err))
		return models.DocumentList[models.ChatRoomView]{}, err
	}

	return models.DocumentList[models.ChatRoomView]{Documents: views, Total: rooms.Total}, nil
}

func otherParticipant(participants []string, userID string) string {
	for _, p := range participants {
		if p != userID {
			return p
		}
	}
	return ""
}
