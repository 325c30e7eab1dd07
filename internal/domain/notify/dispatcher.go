// Package notify despacha el aviso de llegada al residente dueño del pase.
// Es best-effort puro: la transición ya está commiteada cuando se intenta
// el envío, y ningún fallo de directorio o de push la revierte ni llega al
// operador — solo se loguea.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"condo-access-control/internal/domain/grants"
	"condo-access-control/internal/ports/directory"
	"condo-access-control/internal/ports/push"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultAttempts = 2 // reintentos además del primer envío
	initialBackoff  = 200 * time.Millisecond
)

type Dispatcher struct {
	directory directory.Resolver
	sender    push.Sender
	log       *zap.Logger

	timeout  time.Duration
	attempts uint64

	wg sync.WaitGroup
}

type Options struct {
	// Timeout acota la llamada saliente completa (lookup + envío con
	// reintentos) para que un servicio de push lento no acumule trabajo
	// pendiente sin límite. Cero => default.
	Timeout time.Duration

	// Attempts: reintentos con backoff tras el primer envío fallido.
	Attempts uint64

	Logger *zap.Logger
}

func NewDispatcher(dir directory.Resolver, sender push.Sender, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := opts.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	return &Dispatcher{
		directory: dir,
		sender:    sender,
		log:       log,
		timeout:   timeout,
		attempts:  attempts,
	}
}

// NotifyArrival dispara el aviso sin bloquear al caller. El contexto es
// propio (no el del request): la transición ya ocurrió y el despacho no
// debe morir con el request que la originó.
func (d *Dispatcher) NotifyArrival(g grants.Grant) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(g)
	}()
}

// Wait drena los despachos en vuelo (shutdown y tests).
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(g grants.Grant) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	entry, err := d.directory.Resolve(ctx, g.AuthorID)
	if err != nil {
		d.log.Warn("directory lookup failed, skipping arrival push",
			zap.String("grant_id", g.ID),
			zap.String("author_id", g.AuthorID),
			zap.Error(err))
		return
	}
	if entry.PushToken == "" {
		// Residente sin token registrado: se omite en silencio.
		d.log.Debug("resident has no push token",
			zap.String("grant_id", g.ID),
			zap.String("author_id", g.AuthorID))
		return
	}

	msg := push.Message{
		To:       entry.PushToken,
		Title:    "Visita llegando",
		Body:     fmt.Sprintf("%s (%s) ha ingresado al condominio.", g.VisitorName, g.Kind),
		Priority: "high",
	}

	backoff := retry.WithMaxRetries(d.attempts, retry.NewExponential(initialBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.sender.Send(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.log.Warn("arrival push failed",
			zap.String("grant_id", g.ID),
			zap.String("author_id", g.AuthorID),
			zap.Error(err))
		return
	}

	d.log.Info("arrival push sent",
		zap.String("grant_id", g.ID),
		zap.String("author_id", g.AuthorID))
}
