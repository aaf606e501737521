package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram posts Markdown messages to one chat through the Bot API.
type Telegram struct {
	APIURL string
	Token  string
	ChatID int64
	HTTP   *http.Client
}

func NewTelegram(token string, chatID int64) *Telegram {
	return &Telegram{APIURL: DefaultTelegramAPI, Token: token, ChatID: chatID, HTTP: &http.Client{Timeout: 5 * time.Second}}
}

func (t *Telegram) Name() string { return fmt.Sprintf("telegram:%d", t.ChatID) }

type sendMessage struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Publish(ctx context.Context, text string) error {
	if t.Token == "" {
		return errors.New("notify: telegram token is not configured")
	}
	body, err := json.Marshal(sendMessage{ChatID: t.ChatID, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(t.APIURL, "/") + "/bot" + t.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.HTTP.Do(req)
	if err != nil {
		// *url.Error quotes the full URL, bot token included
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("notify: %s: request failed: %w", t.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return checkResponse(t.Name(), resp)
	}
	defer resp.Body.Close()
	var br botResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return fmt.Errorf("notify: %s: decode response: %w", t.Name(), err)
	}
	if !br.OK {
		return fmt.Errorf("notify: %s: %s", t.Name(), br.Description)
	}
	return nil
}
