// Package memory implementa el store de pases en memoria: mapa bajo mutex,
// compare-and-set sobre status, archivado todo-o-nada y un change stream
// por suscriptor con colas sin límite. Sirve para dev y tests; la paridad
// de contrato con el adapter de postgres es deliberada.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"condo-access-control/internal/domain/grants"
)

type grantsRepo struct {
	mu      sync.Mutex
	byID    map[string]grants.Grant
	subs    map[int]*subscriber
	nextSub int
}

func NewGrantsRepo() grants.Repository {
	return &grantsRepo{
		byID: make(map[string]grants.Grant),
		subs: make(map[int]*subscriber),
	}
}

// subscriber acumula diffs en una cola sin límite, apendeada bajo el lock
// del store (eso preserva el orden de escritura por id) y drenada por una
// goroutine propia hacia el canal del consumidor.
type subscriber struct {
	filter grants.Filter

	mu     sync.Mutex
	queue  []grants.Change
	wake   chan struct{}
	closed bool

	out chan grants.Change
}

func (s *subscriber) enqueue(c grants.Change) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, c)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain(ctx context.Context) {
	defer close(s.out)
	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, c := range pending {
			select {
			case s.out <- c:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		}
	}
}

func (r *grantsRepo) Create(ctx context.Context, g grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = g
	r.emitLocked(nil, g)
	return nil
}

func (r *grantsRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.byID[id]
	if !ok {
		return grants.Grant{}, grants.ErrNotFound
	}
	return g, nil
}

// Transition solo escribe si el status almacenado sigue siendo expected.
// El timestamp de la transición se fija exactamente una vez: un segundo
// intento pierde la precondición y no toca nada.
func (r *grantsRepo) Transition(ctx context.Context, id string, expected, next grants.Status, field grants.TimeField, at time.Time) (grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.byID[id]
	if !ok {
		return grants.Grant{}, grants.ErrNotFound
	}
	if g.Status != expected {
		return grants.Grant{}, grants.TransitionConflict(g.Status, next)
	}

	before := g
	g.Status = next
	t := at
	switch field {
	case grants.FieldEntryTime:
		g.EntryTime = &t
	case grants.FieldExitTime:
		g.ExitTime = &t
	}
	r.byID[id] = g
	r.emitLocked(&before, g)
	return g, nil
}

func (r *grantsRepo) QueryActive(ctx context.Context) ([]grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.Status == grants.StatusPendiente || g.Status == grants.StatusEnSitio {
			out = append(out, g)
		}
	}
	grants.SortActive(out)
	return out, nil
}

func (r *grantsRepo) QueryHistory(ctx context.Context, limit int) ([]grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.Status == grants.StatusSalida && !g.Archived {
			out = append(out, g)
		}
	}
	grants.SortHistory(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *grantsRepo) QueryRadar(ctx context.Context, authorID string) ([]grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.Status == grants.StatusEnSitio && g.AuthorID == authorID {
			out = append(out, g)
		}
	}
	grants.SortActive(out)
	return out, nil
}

func (r *grantsRepo) QueryByAuthor(ctx context.Context, authorID string) ([]grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.AuthorID == authorID {
			out = append(out, g)
		}
	}
	// Más recientes primero: la vista del residente.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ArchiveBatch valida todo el batch antes de tocar nada: si un id falta o
// no está en SALIDA, no se archiva ninguno.
func (r *grantsRepo) ArchiveBatch(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		g, ok := r.byID[id]
		if !ok || g.Status != grants.StatusSalida {
			return grants.ErrPartialArchive
		}
	}

	for _, id := range ids {
		before := r.byID[id]
		g := before
		g.Archived = true
		r.byID[id] = g
		r.emitLocked(&before, g)
	}
	return nil
}

// Subscribe entrega primero el conjunto actual como eventos added (bajo el
// lock, así queda ordenado antes de cualquier escritura posterior) y luego
// diffs incrementales. ctx cancela la suscripción y libera la cola.
func (r *grantsRepo) Subscribe(ctx context.Context, f grants.Filter) (<-chan grants.Change, error) {
	r.mu.Lock()

	sub := &subscriber{
		filter: f,
		wake:   make(chan struct{}, 1),
		out:    make(chan grants.Change),
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = sub

	for _, g := range r.byID {
		if f.Matches(g) {
			sub.enqueue(grants.Change{Op: grants.OpAdded, Grant: g})
		}
	}
	r.mu.Unlock()

	go sub.drain(ctx)
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
		sub.mu.Lock()
		sub.closed = true
		sub.queue = nil
		sub.mu.Unlock()
	}()

	return sub.out, nil
}

// emitLocked traduce una escritura a diffs por suscriptor según si el pase
// entraba, sigue o sale del predicado. Se llama con r.mu tomado.
func (r *grantsRepo) emitLocked(before *grants.Grant, after grants.Grant) {
	for _, sub := range r.subs {
		matchedBefore := before != nil && sub.filter.Matches(*before)
		matchesNow := sub.filter.Matches(after)

		switch {
		case !matchedBefore && matchesNow:
			sub.enqueue(grants.Change{Op: grants.OpAdded, Grant: after})
		case matchedBefore && matchesNow:
			sub.enqueue(grants.Change{Op: grants.OpModified, Grant: after})
		case matchedBefore && !matchesNow:
			sub.enqueue(grants.Change{Op: grants.OpRemoved, Grant: after})
		}
	}
}
