// Package users es el cliente HTTP del directorio de residentes. De ahí
// salen el push token y el snapshot de unidad/nombre que se congela en
// cada pase al crearlo.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"condo-access-control/internal/platform/httpclient"
	"condo-access-control/internal/ports/directory"
)

var (
	ErrNotConfigured = errors.New("directory client not configured")
	ErrUserNotFound  = errors.New("directory user not found")
	ErrUpstream      = errors.New("directory upstream error")
)

// Config del cliente de directorio.
// BaseURL y APIKey normalmente vienen de env vars.
type Config struct {
	BaseURL string
	APIKey  string

	// Opcional: header de la API key. Vacío => "X-Api-Key".
	APIKeyHeader string
	Timeout      time.Duration
}

type Client struct {
	http         *httpclient.Client
	apiKey       string
	apiKeyHeader string
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != ""
}

// Resolve trae la ficha del residente por id.
func (c *Client) Resolve(ctx context.Context, userID string) (directory.Entry, error) {
	if !c.IsConfigured() {
		return directory.Entry{}, ErrNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return directory.Entry{}, errors.New("userID required")
	}

	var out struct {
		PushToken   string `json:"push_token"`
		DisplayName string `json:"display_name"`
		Unit        string `json:"unit"`
	}

	headers := map[string]string{c.apiKeyHeader: c.apiKey}
	path := "/v1/users/" + url.PathEscape(userID)

	if err := c.http.DoJSON(ctx, "GET", path, headers, nil, &out); err != nil {
		var herr *httpclient.HTTPError
		if errors.As(err, &herr) && herr.StatusCode == 404 {
			return directory.Entry{}, ErrUserNotFound
		}
		return directory.Entry{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return directory.Entry{
		PushToken:   strings.TrimSpace(out.PushToken),
		DisplayName: strings.TrimSpace(out.DisplayName),
		Unit:        strings.TrimSpace(out.Unit),
	}, nil
}
