package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"rankboard/internal/config"
	"rankboard/internal/constants"
	"rankboard/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

var webhookRe = regexp.MustCompile(`webhooks/(\d+)/([A-Za-z0-9_\-.]+)`)

// Client is a minimal Discord REST client for the batch sync: message
// paging, deletion, pins, and webhook publishing. No gateway session.
type Client struct {
	token  string
	client *fasthttp.Client
	logger zerolog.Logger
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		token: cfg.DiscordToken,
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type apiMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Author    apiUser   `json:"author"`
}

// Me validates the bot token and returns the account's tag. A failure
// here is fatal for the whole run.
func (c *Client) Me(ctx context.Context) (string, error) {
	status, body, err := c.do(ctx, fasthttp.MethodGet, constants.DiscordAPIBase+"/users/@me", nil, true)
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("token validation failed: HTTP %d", status)
	}

	var user apiUser
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}

	c.logger.Info().Str("username", user.Username).Str("user_id", user.ID).Msg("logged in")
	return fmt.Sprintf("%s (%s)", user.Username, user.ID), nil
}

// FetchMessages returns up to limit of the channel's most recent
// messages, re-sorted into original posting order (oldest first).
func (c *Client) FetchMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	url := fmt.Sprintf("%s/channels/%s/messages?limit=%d", constants.DiscordAPIBase, channelID, limit)
	status, body, err := c.do(ctx, fasthttp.MethodGet, url, nil, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("failed to fetch messages: HTTP %d", status)
	}

	var raw []apiMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(raw))
	for _, m := range raw {
		msgs = append(msgs, domain.Message{
			ID:        m.ID,
			Content:   m.Content,
			AuthorID:  m.Author.ID,
			CreatedAt: m.Timestamp,
		})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })

	c.logger.Info().Int("count", len(msgs)).Str("channel_id", channelID).Msg("fetched messages")
	return msgs, nil
}

// DeleteMessage removes a consumed source message. An already-deleted
// target is success, not failure.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	url := fmt.Sprintf("%s/channels/%s/messages/%s", constants.DiscordAPIBase, channelID, messageID)
	status, _, err := c.do(ctx, fasthttp.MethodDelete, url, nil, true)
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	switch status {
	case fasthttp.StatusNoContent:
		return nil
	case fasthttp.StatusNotFound:
		c.logger.Warn().Str("message_id", messageID).Msg("message already deleted")
		return nil
	default:
		return fmt.Errorf("failed to delete message %s: HTTP %d", messageID, status)
	}
}

// PinnedMessages lists the channel's pinned messages.
func (c *Client) PinnedMessages(ctx context.Context, channelID string) ([]domain.Message, error) {
	url := fmt.Sprintf("%s/channels/%s/pins", constants.DiscordAPIBase, channelID)
	status, body, err := c.do(ctx, fasthttp.MethodGet, url, nil, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pins: %w", err)
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("failed to fetch pins: HTTP %d", status)
	}

	var raw []apiMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode pins: %w", err)
	}

	msgs := make([]domain.Message, 0, len(raw))
	for _, m := range raw {
		msgs = append(msgs, domain.Message{ID: m.ID, Content: m.Content, AuthorID: m.Author.ID, CreatedAt: m.Timestamp})
	}
	return msgs, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/channels/%s/messages", constants.DiscordAPIBase, channelID)
	status, body, err := c.do(ctx, fasthttp.MethodPost, url, payload, true)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("failed to send message: HTTP %d", status)
	}

	var msg apiMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("failed to decode sent message: %w", err)
	}
	return msg.ID, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/channels/%s/messages/%s", constants.DiscordAPIBase, channelID, messageID)
	status, _, err := c.do(ctx, fasthttp.MethodPatch, url, payload, true)
	if err != nil {
		return fmt.Errorf("failed to edit message %s: %w", messageID, err)
	}
	if status != fasthttp.StatusOK {
		return fmt.Errorf("failed to edit message %s: HTTP %d", messageID, status)
	}
	return nil
}

func (c *Client) PinMessage(ctx context.Context, channelID, messageID string) error {
	url := fmt.Sprintf("%s/channels/%s/pins/%s", constants.DiscordAPIBase, channelID, messageID)
	status, _, err := c.do(ctx, fasthttp.MethodPut, url, nil, true)
	if err != nil {
		return fmt.Errorf("failed to pin message %s: %w", messageID, err)
	}
	if status != fasthttp.StatusNoContent {
		return fmt.Errorf("failed to pin message %s: HTTP %d", messageID, status)
	}
	return nil
}

// ── Webhook operations ──

// PostWebhookMessage creates the public leaderboard message and
// returns its id for persistent configuration.
func (c *Client) PostWebhookMessage(ctx context.Context, webhookURL string, payload any) (string, error) {
	id, token, err := parseWebhook(webhookURL)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/webhooks/%s/%s?wait=true", constants.DiscordAPIBase, id, token)
	status, respBody, err := c.do(ctx, fasthttp.MethodPost, url, body, false)
	if err != nil {
		return "", fmt.Errorf("failed to post webhook message: %w", err)
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("failed to post webhook message: HTTP %d", status)
	}

	var msg apiMessage
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return "", fmt.Errorf("failed to decode webhook response: %w", err)
	}

	c.logger.Info().Str("message_id", msg.ID).Msg("posted new webhook message")
	return msg.ID, nil
}

func (c *Client) EditWebhookMessage(ctx context.Context, webhookURL, messageID string, payload any) error {
	id, token, err := parseWebhook(webhookURL)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/webhooks/%s/%s/messages/%s", constants.DiscordAPIBase, id, token, messageID)
	status, _, err := c.do(ctx, fasthttp.MethodPatch, url, body, false)
	if err != nil {
		return fmt.Errorf("failed to edit webhook message %s: %w", messageID, err)
	}
	if status != fasthttp.StatusOK {
		return fmt.Errorf("failed to edit webhook message %s: HTTP %d", messageID, status)
	}
	return nil
}

// FetchWebhookMessage reports whether a previously published message
// still exists.
func (c *Client) FetchWebhookMessage(ctx context.Context, webhookURL, messageID string) (bool, error) {
	id, token, err := parseWebhook(webhookURL)
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/webhooks/%s/%s/messages/%s", constants.DiscordAPIBase, id, token, messageID)
	status, _, err := c.do(ctx, fasthttp.MethodGet, url, nil, false)
	if err != nil {
		return false, fmt.Errorf("failed to fetch webhook message %s: %w", messageID, err)
	}
	switch status {
	case fasthttp.StatusOK:
		return true, nil
	case fasthttp.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("failed to fetch webhook message %s: HTTP %d", messageID, status)
	}
}

func parseWebhook(url string) (id, token string, err error) {
	m := webhookRe.FindStringSubmatch(url)
	if m == nil {
		return "", "", fmt.Errorf("invalid webhook URL")
	}
	return m[1], m[2], nil
}

// do issues one HTTP request with bounded retry. Rate limiting sleeps
// for the server-suggested delay before retrying; 5xx responses and
// transport errors retry with backoff.
func (c *Client) do(ctx context.Context, method, url string, body []byte, auth bool) (int, []byte, error) {
	var status int
	var respBody []byte

	backoff := retry.WithMaxRetries(constants.MaxRetryAttempts, retry.NewFibonacci(constants.RetryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		status, respBody, err = c.once(ctx, method, url, body, auth)
		if err != nil {
			return retry.RetryableError(err)
		}
		if status == fasthttp.StatusTooManyRequests {
			wait := retryAfter(respBody)
			c.logger.Warn().Dur("wait", wait).Str("url", url).Msg("rate limited, backing off")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			return retry.RetryableError(fmt.Errorf("rate limited"))
		}
		if status >= fasthttp.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("server error: HTTP %d", status))
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return status, respBody, nil
}

func (c *Client) once(ctx context.Context, method, url string, body []byte, auth bool) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	if auth {
		req.Header.Set("Authorization", "Bot "+c.token)
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return resp.StatusCode(), out, nil
}

// retryAfter reads the server-suggested delay from a 429 body.
func retryAfter(body []byte) time.Duration {
	var parsed struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.RetryAfter <= 0 {
		return constants.RateLimitFallback
	}
	return time.Duration(parsed.RetryAfter * float64(time.Second))
}
