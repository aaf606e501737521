// Package notify delivers rendered change notifications to the configured
// channels and journals every attempt.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Notifier delivers a text payload to one channel.
type Notifier interface {
	// Name is the channel identifier, e.g. "telegram:-100123".
	Name() string
	Publish(ctx context.Context, text string) error
}

// StatusError is returned when a channel endpoint answers with a non-2xx
// status.
type StatusError struct {
	Channel string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("notify: %s returned status %d", e.Channel, e.Code)
	}
	return fmt.Sprintf("notify: %s returned status %d: %s", e.Channel, e.Code, e.Body)
}

// Kind is the channel kind prefix of a channel identifier.
func Kind(name string) string {
	kind, _, _ := strings.Cut(name, ":")
	return kind
}

// checkResponse drains resp and turns a non-2xx status into a *StatusError.
func checkResponse(channel string, resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{Channel: channel, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
