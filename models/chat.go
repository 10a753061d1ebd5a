package models

import "slices"

// Message is an append-only chat message.
type Message struct {
	ID         string `json:"$id"`
	ChatRoomID string `json:"chatRoomId"`
	SenderID   string `json:"senderId"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"` // Client clock, used for ordering
}

// NewMessage is the send-message form.
type NewMessage struct {
	ChatRoomID string `json:"chatRoomId" validate:"required"`
	SenderID   string `json:"senderId" validate:"required"`
	Content    string `json:"content" validate:"required"`
	CreatedAt  string `json:"createdAt"`
}

// ChatRoom holds its participants and a denormalized preview of the last
// message.
type ChatRoom struct {
	ID              string   `json:"$id"`
	Participants    []string `json:"participants"`
	LastMessage     *string  `json:"lastMessage"`
	LastMessageTime string   `json:"lastMessageTime"`
	CreatedAt       string   `json:"createdAt"`
}

// HasParticipant reports whether userID belongs to the room.
func (r ChatRoom) HasParticipant(userID string) bool {
	return userID != "" && slices.Contains(r.Participants, userID)
}

// ChatRoomView is a room together with the profile of the participant that
// is not the requesting user. OtherParticipant is nil for degenerate rooms.
type ChatRoomView struct {
	ChatRoom
	OtherParticipant *User `json:"otherParticipant,omitempty"`
}

const (
	// MessagesCollection is the store collection for chat messages
	MessagesCollection = "messages"
	// ChatRoomsCollection is the store collection for chat rooms
	ChatRoomsCollection = "chatRooms"
)
