package models

import "time"

// User represents a registered user
type User struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	EmailAddress string `json:"email"`
}

// DisplayName returns "First Last"
func (u User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// UserEntry is one row of the user directory used for search
type UserEntry struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Conversation is an entry in a user's conversation list
type Conversation struct {
	ID             string        `json:"id"`
	OtherUserEmail string        `json:"other_user_email"`
	Name           string        `json:"name"`
	LatestMessage  LatestMessage `json:"latest_message"`
}

// LatestMessage is the preview shown in the conversation list
type LatestMessage struct {
	Date   string `json:"date"`
	Text   string `json:"message"`
	IsRead bool   `json:"is_read"`
}

// Sender identifies the author of a message
type Sender struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Message is a single chat message
type Message struct {
	Sender    Sender      `json:"sender"`
	MessageID string      `json:"message_id"`
	SentDate  time.Time   `json:"sent_date"`
	Kind      MessageKind `json:"kind"`
	Text      string      `json:"text,omitempty"`
	Media     *Media      `json:"media,omitempty"`
	Location  *Location   `json:"location,omitempty"`
}

// Content returns the string stored for the message's payload
func (m *Message) Content() string {
	switch m.Kind {
	case KindPhoto, KindVideo:
		if m.Media == nil {
			return ""
		}
		return m.Media.URL
	case KindLocation:
		if m.Location == nil {
			return ""
		}
		return m.Location.String()
	default:
		return m.Text
	}
}
