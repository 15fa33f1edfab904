// Package slack delivers prompts and notices over the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultPostMessageURL      = "https://slack.com/api/chat.postMessage"
	defaultConversationOpenURL = "https://slack.com/api/conversations.open"
)

type Poster struct {
	token         string
	noticeChannel string
	client        *http.Client
	logger        *slog.Logger
	postURL       string
	openURL       string

	mu  sync.Mutex
	dms map[string]string // slack user id -> DM channel id
}

func NewPoster(token, noticeChannel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:         token,
		noticeChannel: noticeChannel,
		client:        &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
		postURL:       defaultPostMessageURL,
		openURL:       defaultConversationOpenURL,
		dms:           make(map[string]string),
	}
}

// NotifyUser sends text to the user's DM channel, opening it on first use.
func (p *Poster) NotifyUser(ctx context.Context, slackID, text string) error {
	channel, err := p.dmChannel(ctx, slackID)
	if err != nil {
		return err
	}
	return p.PostMessage(ctx, channel, text, "")
}

// NotifyChannel sends text to the configured notice channel.
func (p *Poster) NotifyChannel(ctx context.Context, text string) error {
	return p.PostMessage(ctx, p.noticeChannel, text, "")
}

// PostMessage posts text to a channel, threaded under threadTS when given.
func (p *Poster) PostMessage(ctx context.Context, channel, text, threadTS string) error {
	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}

	var resp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := p.call(ctx, p.postURL, payload, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("slack error: %s", resp.Error)
	}
	p.logger.Debug("posted message", "channel", channel, "ts", resp.TS)
	return nil
}

// dmChannel resolves and caches the DM channel for a user.
func (p *Poster) dmChannel(ctx context.Context, slackID string) (string, error) {
	p.mu.Lock()
	if ch, ok := p.dms[slackID]; ok {
		p.mu.Unlock()
		return ch, nil
	}
	p.mu.Unlock()

	var resp struct {
		OK      bool   `json:"ok"`
		Error   string `json:"error,omitempty"`
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}
	if err := p.call(ctx, p.openURL, map[string]any{"users": slackID}, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("slack error: %s", resp.Error)
	}

	p.mu.Lock()
	p.dms[slackID] = resp.Channel.ID
	p.mu.Unlock()
	return resp.Channel.ID, nil
}

func (p *Poster) call(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	return nil
}
