// Package ledger consulta el sistema de cobranzas del condominio para
// decidir si un residente moroso puede seguir autorizando visitas.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"condo-access-control/internal/platform/httpclient"
)

var (
	ErrNotConfigured = errors.New("billing client not configured")
	ErrUpstream      = errors.New("billing upstream error")
)

type Config struct {
	BaseURL string

	// MaxMonthsOwed: meses de deuda tolerados antes de bloquear la
	// creación de pases. Cero => cualquier deuda bloquea.
	MaxMonthsOwed int
	Timeout       time.Duration
}

type Client struct {
	http          *httpclient.Client
	maxMonthsOwed int
}

func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:          hc,
		maxMonthsOwed: cfg.MaxMonthsOwed,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != ""
}

// MayCreate responde si el residente está habilitado para autorizar
// visitas. El error es del upstream; quien llama decide si falla
// abierto o cerrado.
func (c *Client) MayCreate(ctx context.Context, residentID string) (bool, error) {
	if !c.IsConfigured() {
		return false, ErrNotConfigured
	}
	residentID = strings.TrimSpace(residentID)
	if residentID == "" {
		return false, errors.New("residentID required")
	}

	var out struct {
		MonthsOwed int `json:"months_owed"`
	}

	path := "/v1/units/" + url.PathEscape(residentID) + "/debt"
	if err := c.http.DoJSON(ctx, "GET", path, nil, nil, &out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return out.MonthsOwed <= c.maxMonthsOwed, nil
}
