// Package views deriva las tres vistas en vivo de la garita y el residente
// a partir del change stream del repositorio: cola activa, historial de la
// guardia y radar de llegadas por residente. Cada vista es una suscripción
// independiente; el orden entre vistas o entre ids distintos no está
// garantizado, solo el orden de escritura por id.
package views

import (
	"context"
	"time"

	"condo-access-control/internal/domain/grants"

	"go.uber.org/zap"
)

type Synchronizer struct {
	repo grants.Repository
	log  *zap.Logger
}

func NewSynchronizer(repo grants.Repository, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{repo: repo, log: log}
}

// Arrival es la señal del radar: la visita de este residente acaba de
// entrar. Se emite a lo sumo una vez por edge PENDIENTE→EN_SITIO.
type Arrival struct {
	Grant grants.Grant
	At    time.Time
}

// WatchActive emite el snapshot ordenado de la cola activa (EN_SITIO
// primero) en cada cambio. El canal se cierra cuando ctx se cancela.
func (s *Synchronizer) WatchActive(ctx context.Context) (<-chan []grants.Grant, error) {
	ch, err := s.repo.Subscribe(ctx, grants.Filter{
		Statuses: []grants.Status{grants.StatusPendiente, grants.StatusEnSitio},
	})
	if err != nil {
		return nil, err
	}

	out := make(chan []grants.Grant)
	go func() {
		defer close(out)
		current := make(map[string]grants.Grant)
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-ch:
				if !ok {
					return
				}
				applyChange(current, c)
				snap := snapshot(current)
				grants.SortActive(snap)
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// WatchHistory emite el historial de la guardia (SALIDA sin archivar),
// ordenado por hora de salida descendente y truncado a limit.
func (s *Synchronizer) WatchHistory(ctx context.Context, limit int) (<-chan []grants.Grant, error) {
	ch, err := s.repo.Subscribe(ctx, grants.Filter{
		Statuses:        []grants.Status{grants.StatusSalida},
		ExcludeArchived: true,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan []grants.Grant)
	go func() {
		defer close(out)
		current := make(map[string]grants.Grant)
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-ch:
				if !ok {
					return
				}
				applyChange(current, c)
				snap := snapshot(current)
				grants.SortHistory(snap)
				if limit > 0 && len(snap) > limit {
					snap = snap[:limit]
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// WatchRadar emite una señal de llegada por cada pase del residente que
// cruza a EN_SITIO. El store puede reentregar el mismo snapshot varias
// veces; el radar recuerda qué ids ya reportó y no duplica la alerta.
// El status es monótono, así que un id reportado no vuelve a entrar.
func (s *Synchronizer) WatchRadar(ctx context.Context, authorID string) (<-chan Arrival, error) {
	if authorID == "" {
		return nil, grants.ErrInvalidInput
	}
	ch, err := s.repo.Subscribe(ctx, grants.Filter{
		Statuses: []grants.Status{grants.StatusEnSitio},
		AuthorID: authorID,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan Arrival)
	go func() {
		defer close(out)
		reported := make(map[string]bool)
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-ch:
				if !ok {
					return
				}
				if c.Op == grants.OpRemoved {
					continue
				}
				if reported[c.Grant.ID] {
					continue
				}
				reported[c.Grant.ID] = true
				at := time.Now()
				if c.Grant.EntryTime != nil {
					at = *c.Grant.EntryTime
				}
				select {
				case out <- Arrival{Grant: c.Grant, At: at}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func applyChange(current map[string]grants.Grant, c grants.Change) {
	switch c.Op {
	case grants.OpAdded, grants.OpModified:
		current[c.Grant.ID] = c.Grant
	case grants.OpRemoved:
		delete(current, c.Grant.ID)
	}
}

func snapshot(current map[string]grants.Grant) []grants.Grant {
	out := make([]grants.Grant, 0, len(current))
	for _, g := range current {
		out = append(out, g)
	}
	return out
}
