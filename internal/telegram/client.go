package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Message is a channel post relevant to signal ingestion.
type Message struct {
	ID   int64
	Text string
	Date time.Time
	Chat string // channel username or title
}

// Client polls a Telegram channel through the Bot API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client

	// getUpdates cursor; advanced past every update we have seen so the
	// API stops re-delivering them.
	offset int64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the Bot API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new Telegram polling client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// update mirrors the Bot API getUpdates payload; only the fields we read.
type update struct {
	UpdateID    int64       `json:"update_id"`
	Message     *rawMessage `json:"message"`
	ChannelPost *rawMessage `json:"channel_post"`
}

type rawMessage struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
	Chat      struct {
		Username string `json:"username"`
		Title    string `json:"title"`
	} `json:"chat"`
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description,omitempty"`
	Result      []update `json:"result"`
}

// Poll fetches pending updates and returns posts from the named channel with
// a message id greater than sinceID, in ascending message-id order.
func (c *Client) Poll(ctx context.Context, channel string, sinceID int64) ([]Message, error) {
	params := url.Values{}
	if c.offset != 0 {
		params.Set("offset", strconv.FormatInt(c.offset, 10))
	}
	params.Set("allowed_updates", `["message","channel_post"]`)

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", c.baseURL, c.token, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create getUpdates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send getUpdates request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read getUpdates response: %w", err)
	}

	var parsed updatesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal getUpdates response: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram API error: %s", parsed.Description)
	}

	var messages []Message
	for _, u := range parsed.Result {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}

		raw := u.ChannelPost
		if raw == nil {
			raw = u.Message
		}
		if raw == nil || raw.Text == "" {
			continue
		}
		if !chatMatches(raw, channel) {
			continue
		}
		if raw.MessageID <= sinceID {
			continue
		}

		messages = append(messages, Message{
			ID:   raw.MessageID,
			Text: raw.Text,
			Date: time.Unix(raw.Date, 0).UTC(),
			Chat: chatName(raw),
		})
	}

	return messages, nil
}

func chatMatches(raw *rawMessage, channel string) bool {
	channel = strings.TrimPrefix(channel, "@")
	return strings.EqualFold(raw.Chat.Username, channel) ||
		strings.EqualFold(raw.Chat.Title, channel)
}

func chatName(raw *rawMessage) string {
	if raw.Chat.Username != "" {
		return raw.Chat.Username
	}
	return raw.Chat.Title
}
