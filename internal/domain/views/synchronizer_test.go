package views

import (
	"context"
	"errors"
	"testing"
	"time"

	"condo-access-control/internal/domain/grants"
)

// feedRepo solo implementa Subscribe: el test alimenta el change stream a
// mano y observa qué emite cada vista.
type feedRepo struct {
	ch chan grants.Change
}

func newFeedRepo() *feedRepo {
	return &feedRepo{ch: make(chan grants.Change)}
}

func (r *feedRepo) Subscribe(ctx context.Context, f grants.Filter) (<-chan grants.Change, error) {
	return r.ch, nil
}

func (r *feedRepo) Create(ctx context.Context, g grants.Grant) error { return errors.New("unused") }
func (r *feedRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	return grants.Grant{}, errors.New("unused")
}
func (r *feedRepo) Transition(ctx context.Context, id string, expected, next grants.Status, field grants.TimeField, at time.Time) (grants.Grant, error) {
	return grants.Grant{}, errors.New("unused")
}
func (r *feedRepo) QueryActive(ctx context.Context) ([]grants.Grant, error)  { return nil, nil }
func (r *feedRepo) QueryHistory(ctx context.Context, limit int) ([]grants.Grant, error) {
	return nil, nil
}
func (r *feedRepo) QueryRadar(ctx context.Context, authorID string) ([]grants.Grant, error) {
	return nil, nil
}
func (r *feedRepo) QueryByAuthor(ctx context.Context, authorID string) ([]grants.Grant, error) {
	return nil, nil
}
func (r *feedRepo) ArchiveBatch(ctx context.Context, ids []string) error { return errors.New("unused") }

func push(t *testing.T, r *feedRepo, c grants.Change) {
	t.Helper()
	select {
	case r.ch <- c:
	case <-time.After(time.Second):
		t.Fatal("timed out pushing change")
	}
}

func recvSnapshot(t *testing.T, ch <-chan []grants.Grant) []grants.Grant {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func tstamp(min int) time.Time {
	return time.Date(2026, 3, 10, 9, min, 0, 0, time.UTC)
}

func TestWatchActive_OrdersOnSiteFirst(t *testing.T) {
	repo := newFeedRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := NewSynchronizer(repo, nil).WatchActive(ctx)
	if err != nil {
		t.Fatalf("WatchActive: %v", err)
	}

	g1 := grants.Grant{ID: "g-1", Status: grants.StatusPendiente, CreatedAt: tstamp(0)}
	g2 := grants.Grant{ID: "g-2", Status: grants.StatusPendiente, CreatedAt: tstamp(5)}

	push(t, repo, grants.Change{Op: grants.OpAdded, Grant: g1})
	snap := recvSnapshot(t, out)
	if len(snap) != 1 || snap[0].ID != "g-1" {
		t.Fatalf("first snapshot = %v", snap)
	}

	push(t, repo, grants.Change{Op: grants.OpAdded, Grant: g2})
	snap = recvSnapshot(t, out)
	if len(snap) != 2 || snap[0].ID != "g-1" || snap[1].ID != "g-2" {
		t.Fatalf("pending order wrong: %v", ids(snap))
	}

	// g2 entra al sitio: pasa al frente aunque se creó después.
	entry := tstamp(6)
	g2.Status = grants.StatusEnSitio
	g2.EntryTime = &entry
	push(t, repo, grants.Change{Op: grants.OpModified, Grant: g2})
	snap = recvSnapshot(t, out)
	if snap[0].ID != "g-2" {
		t.Fatalf("on-site grant must lead the queue: %v", ids(snap))
	}

	// g1 sale del conjunto activo.
	push(t, repo, grants.Change{Op: grants.OpRemoved, Grant: g1})
	snap = recvSnapshot(t, out)
	if len(snap) != 1 || snap[0].ID != "g-2" {
		t.Fatalf("removed grant still in queue: %v", ids(snap))
	}
}

func TestWatchHistory_SortsByExitAndTruncates(t *testing.T) {
	repo := newFeedRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := NewSynchronizer(repo, nil).WatchHistory(ctx, 2)
	if err != nil {
		t.Fatalf("WatchHistory: %v", err)
	}

	var snap []grants.Grant
	for i, min := range []int{10, 30, 20} {
		exit := tstamp(min)
		g := grants.Grant{ID: "g-" + string(rune('a'+i)), Status: grants.StatusSalida, ExitTime: &exit}
		push(t, repo, grants.Change{Op: grants.OpAdded, Grant: g})
		snap = recvSnapshot(t, out)
	}

	// Salida más reciente primero, truncado al límite.
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}
	if snap[0].ID != "g-b" || snap[1].ID != "g-c" {
		t.Fatalf("history order wrong: %v", ids(snap))
	}
}

func TestWatchRadar_DeduplicatesRedelivery(t *testing.T) {
	repo := newFeedRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := NewSynchronizer(repo, nil).WatchRadar(ctx, "resident-1")
	if err != nil {
		t.Fatalf("WatchRadar: %v", err)
	}

	entry := tstamp(15)
	g := grants.Grant{ID: "g-1", AuthorID: "resident-1", Status: grants.StatusEnSitio, EntryTime: &entry}

	push(t, repo, grants.Change{Op: grants.OpAdded, Grant: g})
	select {
	case a := <-out:
		if a.Grant.ID != "g-1" {
			t.Fatalf("arrival for wrong grant: %s", a.Grant.ID)
		}
		if !a.At.Equal(entry) {
			t.Fatalf("arrival at = %v, want entry time %v", a.At, entry)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for arrival")
	}

	// El store puede reentregar el mismo pase (modified o added repetido);
	// el radar no vuelve a sonar.
	push(t, repo, grants.Change{Op: grants.OpModified, Grant: g})
	push(t, repo, grants.Change{Op: grants.OpAdded, Grant: g})
	push(t, repo, grants.Change{Op: grants.OpRemoved, Grant: g})

	select {
	case a := <-out:
		t.Fatalf("unexpected duplicate arrival: %+v", a)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchRadar_RequiresAuthor(t *testing.T) {
	repo := newFeedRepo()
	if _, err := NewSynchronizer(repo, nil).WatchRadar(context.Background(), ""); !errors.Is(err, grants.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func ids(gs []grants.Grant) []string {
	out := make([]string, 0, len(gs))
	for _, g := range gs {
		out = append(out, g.ID)
	}
	return out
}
