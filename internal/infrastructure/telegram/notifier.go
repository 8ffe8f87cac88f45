package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsPipeline/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Channel posts published drafts to a Telegram chat via the bot API.
type Channel struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.PublishChannel = (*Channel)(nil)

// NewChannel registers bot token and chat identifier.
func NewChannel(botToken, chatID string) *Channel {
	return newChannel(defaultAPIBase, botToken, chatID, &http.Client{Timeout: 10 * time.Second})
}

func newChannel(apiBase, botToken, chatID string, client *http.Client) *Channel {
	return &Channel{
		apiBase:  strings.TrimSuffix(apiBase, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   client,
	}
}

func (c *Channel) Name() string {
	return "telegram"
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			Username string `json:"username"`
		} `json:"chat"`
	} `json:"result"`
}

// Publish sends an HTML-formatted teaser linking to the primary article.
func (c *Channel) Publish(ctx context.Context, req ports.PublishRequest) (ports.PublishResult, error) {
	if c.botToken == "" || c.chatID == "" || c.client == nil {
		return ports.PublishResult{}, fmt.Errorf("telegram channel misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	form := url.Values{}
	form.Set("chat_id", c.chatID)
	form.Set("text", buildMessage(req))
	form.Set("parse_mode", "HTML")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ports.PublishResult{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ports.PublishResult{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var out sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.PublishResult{}, fmt.Errorf("telegram error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return ports.PublishResult{}, fmt.Errorf("telegram error: %s %s", resp.Status, out.Description)
	}

	result := ports.PublishResult{RemoteID: strconv.FormatInt(out.Result.MessageID, 10)}
	if out.Result.Chat.Username != "" {
		result.URL = fmt.Sprintf("https://t.me/%s/%d", out.Result.Chat.Username, out.Result.MessageID)
	}
	return result, nil
}

func buildMessage(req ports.PublishRequest) string {
	d := req.Draft
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(d.Title))
	b.WriteString("</b>")
	if d.Lead != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(d.Lead))
	}
	link := d.PrimaryURL
	if link == "" {
		link = req.CanonicalURL
	}
	if link != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(link))
	}
	return b.String()
}
