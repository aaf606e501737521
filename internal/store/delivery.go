package store

import "time"

// Delivery statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Delivery is one notification payload sent to one channel, with the
// outcome of the latest attempt.
type Delivery struct {
	ID           string    `json:"id"`
	Channel      string    `json:"channel"`
	Payload      string    `json:"payload"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	ResponseCode int       `json:"responseCode,omitempty"`
	LatencyMs    int       `json:"latencyMs"`
	LastError    string    `json:"lastError,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
