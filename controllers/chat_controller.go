package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"safespace/helpers"
	"safespace/models"
	"safespace/query"
	"safespace/services"
)

// MessageNotifier fans a stored message out to the room's listeners.
type MessageNotifier interface {
	NotifyMessage(msg models.Message)
}

// ChatController serves chat rooms and messages.
type ChatController struct {
	api      *query.API
	notifier MessageNotifier
	logger   *zap.Logger
}

// NewChatController initializes the chat controller. notifier may be nil.
func NewChatController(api *query.API, notifier MessageNotifier, logger *zap.Logger) *ChatController {
	return &ChatController{api: api, notifier: notifier, logger: logger.Named("chat_controller")}
}

// GetChatRooms lists the signed-in user's rooms with the other participant.
func (c *ChatController) GetChatRooms(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	rooms, err := c.api.ChatRooms(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, rooms)
}

// CreateChatRoom opens a room between the signed-in user and the listed
// participants.
func (c *ChatController) CreateChatRoom(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	var body struct {
		Participants []string `json:"participants"`
	}
	if err := helpers.DecodeJSON(r, &body); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	participants := body.Participants
	if !slices.Contains(participants, user.ID) {
		participants = append([]string{user.ID}, participants...)
	}

	room, err := c.api.CreateChatRoom(r.Context(), participants)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, room)
}

// GetMessages lists a room's messages for one of its participants.
func (c *ChatController) GetMessages(w http.ResponseWriter, r *http.Request) {
	_, room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}

	messages, err := c.api.Messages(r.Context(), room.ID)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, messages)
}

// SendMessage stores a message from the signed-in user and pushes it to the
// room. A message whose room preview could not be updated is still
// delivered and answered with 202.
func (c *ChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}

	var body struct {
		Content   string `json:"content"`
		CreatedAt string `json:"createdAt"`
	}
	if err := helpers.DecodeJSON(r, &body); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	msg, err := c.api.SendMessage(r.Context(), models.NewMessage{
		ChatRoomID: room.ID,
		SenderID:   user.ID,
		Content:    body.Content,
		CreatedAt:  body.CreatedAt,
	})

	var partial *services.PartialWriteError
	switch {
	case err == nil:
		c.notify(msg)
		helpers.WriteJSONResponse(w, http.StatusCreated, msg)
	case errors.As(err, &partial) && msg.ID != "":
		c.logger.Warn("Message stored without room preview",
			zap.String("messageId", msg.ID),
			zap.Error(err))
		c.notify(msg)
		helpers.WriteJSONResponse(w, http.StatusAccepted, msg)
	default:
		writeServiceError(w, c.logger, err)
	}
}

// memberRoom loads the routed room and checks that the signed-in user is a
// participant. On failure the response is already written.
func (c *ChatController) memberRoom(w http.ResponseWriter, r *http.Request) (models.User, models.ChatRoom, bool) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return models.User{}, models.ChatRoom{}, false
	}

	room, err := c.api.ChatRoom(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return models.User{}, models.ChatRoom{}, false
	}
	if !room.HasParticipant(user.ID) {
		writeServiceError(w, c.logger, fmt.Errorf("%w: not a participant of room %s", services.ErrUnauthorized, room.ID))
		return models.User{}, models.ChatRoom{}, false
	}
	return user, room, true
}

func (c *ChatController) notify(msg models.Message) {
	if c.notifier != nil {
		c.notifier.NotifyMessage(msg)
	}
}
