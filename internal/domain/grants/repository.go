package grants

import (
	"context"
	"sort"
	"time"
)

type ChangeOp string

const (
	OpAdded    ChangeOp = "added"
	OpModified ChangeOp = "modified"
	OpRemoved  ChangeOp = "removed"
)

// Change es un diff incremental de una suscripción: el pase entró al
// conjunto del filtro, cambió dentro de él, o lo abandonó.
type Change struct {
	Op    ChangeOp
	Grant Grant
}

// Filter es el predicado de una suscripción. Campos en cero no filtran.
type Filter struct {
	Statuses        []Status
	AuthorID        string
	ExcludeArchived bool
}

func (f Filter) Matches(g Grant) bool {
	if f.AuthorID != "" && g.AuthorID != f.AuthorID {
		return false
	}
	if f.ExcludeArchived && g.Archived {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if g.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Repository es la superficie de persistencia de los pases.
//
// Transition es un write condicional: solo aplica si el status almacenado
// sigue siendo expected (cierra la carrera del doble escaneo). Un fallo de
// la precondición devuelve ErrStaleTransition o ErrInvalidTransition según
// TransitionConflict, sin mutar nada.
//
// Subscribe entrega primero el conjunto actual que cumple el filtro como
// eventos added y luego diffs incrementales. Los cambios de un mismo id
// llegan en orden de escritura; entre ids distintos no hay garantía. La
// suscripción se cancela por ctx y libera sus recursos.
type Repository interface {
	Create(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)

	Transition(ctx context.Context, id string, expected, next Status, field TimeField, at time.Time) (Grant, error)

	QueryActive(ctx context.Context) ([]Grant, error)
	QueryHistory(ctx context.Context, limit int) ([]Grant, error)
	QueryRadar(ctx context.Context, authorID string) ([]Grant, error)
	QueryByAuthor(ctx context.Context, authorID string) ([]Grant, error)

	// ArchiveBatch marca archived=true sobre ids que deben estar todos en
	// SALIDA, como un batch todo-o-nada.
	ArchiveBatch(ctx context.Context, ids []string) error

	Subscribe(ctx context.Context, f Filter) (<-chan Change, error)
}

// SortActive ordena la cola activa: EN_SITIO primero, luego por creación.
func SortActive(gs []Grant) {
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Status != gs[j].Status {
			return gs[i].Status == StatusEnSitio
		}
		return gs[i].CreatedAt.Before(gs[j].CreatedAt)
	})
}

// SortHistory ordena por hora de salida descendente. Se ordena sobre el
// timestamp real, no sobre un string formateado de reloj.
func SortHistory(gs []Grant) {
	exitOf := func(g Grant) time.Time {
		if g.ExitTime != nil {
			return *g.ExitTime
		}
		return time.Time{}
	}
	sort.SliceStable(gs, func(i, j int) bool {
		return exitOf(gs[i]).After(exitOf(gs[j]))
	})
}
