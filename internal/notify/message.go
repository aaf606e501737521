package notify

import (
	"time"

	"github.com/google/uuid"
)

// Message is one notification payload as seen by stream subscribers and
// webhook receivers.
type Message struct {
	ID    string    `json:"id"`
	Topic string    `json:"topic,omitempty"`
	Text  string    `json:"text"`
	At    time.Time `json:"ts"`
}

func NewMessage(topic, text string) Message {
	return Message{ID: newID(), Topic: topic, Text: text, At: time.Now().UTC()}
}

// newID returns a time-ordered UUID so journal listings sort by creation.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
