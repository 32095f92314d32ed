package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/alertgate/gateway/internal/models"
)

// Telegram caps message/caption bytes; no Go Telegram client exists
// anywhere in the retrieval pack so the wire contract is built directly
// on net/http and mime/multipart.
const (
	maxMessageBytes = 4096
	maxCaptionBytes = 1024

	// maxResponseBytes caps how much of the chat API's response body is read.
	maxResponseBytes = 5 * 1024 * 1024
)

// ChatResult describes the outcome of one chat delivery attempt.
type ChatResult struct {
	Sent         bool
	UsedImage    bool
	Downgraded   bool // true if an image send failed and a text fallback was used instead
	HTMLFallback bool // true if the HTML parse_mode attempt failed and the plain-text retry succeeded
	Err          error
}

// ChatSender posts rendered alerts to a Telegram-Bot-shaped chat API
// (sendPhoto for an image caption, sendMessage for text-only).
type ChatSender struct {
	pool *ClientPool
}

// NewChatSender returns a ChatSender backed by a shared client pool.
func NewChatSender(pool *ClientPool) *ChatSender {
	return &ChatSender{pool: pool}
}

// Send delivers text (and image, if non-nil) to ch. It always attempts
// HTML parse_mode first; on a Telegram "can't parse entities" error it
// retries once with parse_mode omitted, and on an image that the bot
// API rejects it downgrades to a text-only sendMessage rather than
// failing the whole delivery.
func (s *ChatSender) Send(ctx context.Context, ch models.Channel, text string, image []byte) ChatResult {
	client, err := s.pool.Get(resolveProxy(ch))
	if err != nil {
		return ChatResult{Err: err}
	}

	timeout := channelTimeout(ch)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if len(image) > 0 && ch.ImageEnabled {
		caption := truncate(text, maxCaptionBytes)
		if err := s.sendPhoto(ctx, client, ch, caption, image, true); err == nil {
			return ChatResult{Sent: true, UsedImage: true}
		} else if isEntityParseError(err) {
			if err := s.sendPhoto(ctx, client, ch, caption, image, false); err == nil {
				return ChatResult{Sent: true, UsedImage: true, HTMLFallback: true}
			}
		}
		// Image rejected outright (e.g. invalid photo); fall back to text.
		res := s.sendText(ctx, client, ch, text)
		res.Downgraded = true
		return res
	}

	return s.sendText(ctx, client, ch, text)
}

func (s *ChatSender) sendText(ctx context.Context, client *http.Client, ch models.Channel, text string) ChatResult {
	body := truncate(text, maxMessageBytes)
	if err := s.sendMessage(ctx, client, ch, body, true); err == nil {
		return ChatResult{Sent: true}
	} else if isEntityParseError(err) {
		if err := s.sendMessage(ctx, client, ch, body, false); err == nil {
			return ChatResult{Sent: true, HTMLFallback: true}
		} else {
			return ChatResult{Err: err}
		}
	} else {
		return ChatResult{Err: err}
	}
}

func (s *ChatSender) sendMessage(ctx context.Context, client *http.Client, ch models.Channel, text string, html bool) error {
	payload := map[string]string{
		"chat_id": ch.ChatID,
		"text":    text,
	}
	if html {
		payload["parse_mode"] = "HTML"
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := strings.TrimRight(ch.BotBaseURL, "/") + "/bot" + ch.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doBotRequest(client, req)
}

func (s *ChatSender) sendPhoto(ctx context.Context, client *http.Client, ch models.Channel, caption string, image []byte, html bool) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	_ = w.WriteField("chat_id", ch.ChatID)
	_ = w.WriteField("caption", caption)
	if html {
		_ = w.WriteField("parse_mode", "HTML")
	}
	part, err := w.CreateFormFile("photo", "chart.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(image); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	url := strings.TrimRight(ch.BotBaseURL, "/") + "/bot" + ch.BotToken + "/sendPhoto"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return doBotRequest(client, req)
}

// botResponse mirrors the Telegram Bot API's {"ok": bool, "description": "..."}
// response envelope, the de-facto contract for any sendPhoto/sendMessage-shaped bot.
type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func doBotRequest(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("chat response read failed: %w", err)
	}

	var br botResponse
	if err := json.Unmarshal(raw, &br); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return fmt.Errorf("chat response %d: %s", resp.StatusCode, string(raw))
	}
	if !br.OK {
		return fmt.Errorf("%s", br.Description)
	}
	return nil
}

func isEntityParseError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "can't parse entities") || strings.Contains(msg, "can't find end") || strings.Contains(msg, "unsupported start tag")
}

// truncate caps body at n bytes, appending an ellipsis if it was cut.
func truncate(body string, n int) string {
	if len(body) <= n {
		return body
	}
	const ellipsis = "…"
	cut := n - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	return body[:cut] + ellipsis
}

func resolveProxy(ch models.Channel) string {
	if ch.ProxyEnabled {
		return ch.Proxy
	}
	return ""
}

func channelTimeout(ch models.Channel) time.Duration {
	if ch.TimeoutSeconds > 0 {
		return time.Duration(ch.TimeoutSeconds) * time.Second
	}
	return 10 * time.Second
}
