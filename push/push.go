package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"humanfinder/config"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	MessageTypeMatch = "match"
)

// Message is the payload accepted by the push server's /send endpoint
type Message struct {
	Type       string            `json:"type"`
	UserTokens []string          `json:"user_tokens" binding:"required"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data"`
}

type Sender struct {
	Server string
	Client *http.Client
}

func NewSender() *Sender {
	return &Sender{
		Server: config.PUSH_SERVER,
		Client: &http.Client{},
	}
}

func (s *Sender) Enabled() bool {
	return s != nil && s.Server != ""
}

func (s *Sender) Send(ctx context.Context, message *Message) error {
	if !s.Enabled() || len(message.UserTokens) == 0 {
		return nil
	}
	buf := bytes.Buffer{}
	if err := json.NewEncoder(&buf).Encode(message); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(s.Server, "/")+"/send", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		slog.Error("push notification", "error", err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		buf.Reset()
		io.Copy(&buf, resp.Body)
		slog.Error("push notification", "status", resp.StatusCode, "body", buf.String())
		return fmt.Errorf("status: %d", resp.StatusCode)
	}
	return nil
}
