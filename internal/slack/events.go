package slack

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventCallback is the Events API envelope delivered to the webhook.
type EventCallback struct {
	Token       string   `json:"token"`
	Type        string   `json:"type"`
	Challenge   string   `json:"challenge,omitempty"`
	AuthedUsers []string `json:"authed_users"`
	Event       Event    `json:"event"`
}

// Event is the inner message event.
type Event struct {
	Type        string `json:"type"`
	User        string `json:"user"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	BotID       string `json:"bot_id,omitempty"`
}

func ParseEventCallback(data []byte) (*EventCallback, error) {
	var cb EventCallback
	if err := json.Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("parse event callback: %w", err)
	}
	return &cb, nil
}

// IsMessage reports whether the callback carries a user-authored message
// the engine should resolve. Bot messages and non-message events are
// ignored.
func (cb *EventCallback) IsMessage() bool {
	return cb.Type == "event_callback" &&
		cb.Event.Type == "message" &&
		cb.Event.BotID == "" &&
		cb.Event.User != ""
}

// MessageText returns the message body with the bot mention stripped, the
// way the engine expects it.
func (cb *EventCallback) MessageText() string {
	text := cb.Event.Text
	for _, u := range cb.AuthedUsers {
		text = strings.ReplaceAll(text, fmt.Sprintf("<@%s>", u), "")
	}
	return strings.TrimSpace(text)
}
