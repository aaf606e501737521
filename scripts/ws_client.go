// Package main tails relay notifications over the WebSocket stream.
//
//	go run ./scripts/ws_client.go --topic ops
package main

import (
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

type message struct {
	ID    string    `json:"id"`
	Topic string    `json:"topic"`
	Text  string    `json:"text"`
	At    time.Time `json:"ts"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	host := pflag.String("host", "localhost:"+port, "relay host:port")
	topic := pflag.StringP("topic", "t", "ops", "stream topic to follow")
	pflag.Parse()

	u := url.URL{Scheme: "ws", Host: *host, Path: "/v1/notifications/ws", RawQuery: url.Values{"topic": {*topic}}.Encode()}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()
	log.Printf("following %s", u.String())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				return
			}
			var m message
			if err := json.Unmarshal(data, &m); err != nil {
				log.Printf("bad frame: %s", data)
				continue
			}
			log.Printf("[%s] %s\n%s", m.Topic, m.At.Format(time.RFC3339), m.Text)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}
