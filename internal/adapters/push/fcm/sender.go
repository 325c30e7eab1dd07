// Package fcm envía notificaciones push vía el endpoint legacy de
// Firebase Cloud Messaging (server key en el header Authorization).
package fcm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"condo-access-control/internal/platform/httpclient"
	"condo-access-control/internal/ports/push"
)

const DefaultURL = "https://fcm.googleapis.com/fcm/send"

var ErrNotConfigured = errors.New("fcm sender not configured")

type Config struct {
	// URL del endpoint; vacío => DefaultURL.
	URL       string
	ServerKey string
	Timeout   time.Duration
}

type Sender struct {
	http      *httpclient.Client
	url       string
	serverKey string
}

func NewSender(cfg Config) *Sender {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		u = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Sender{
		http:      httpclient.New(timeout),
		url:       u,
		serverKey: strings.TrimSpace(cfg.ServerKey),
	}
}

func (s *Sender) IsConfigured() bool {
	return s != nil && s.serverKey != ""
}

// payload con el formato legacy: {to, notification{title, body}, priority}.
type payload struct {
	To           string       `json:"to"`
	Notification notification `json:"notification"`
	Priority     string       `json:"priority,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *Sender) Send(ctx context.Context, msg push.Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("push token required")
	}

	in := payload{
		To: msg.To,
		Notification: notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Priority: msg.Priority,
	}
	headers := map[string]string{
		"Authorization": "key=" + s.serverKey,
	}

	if err := s.http.DoJSON(ctx, "POST", s.url, headers, in, nil); err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}
