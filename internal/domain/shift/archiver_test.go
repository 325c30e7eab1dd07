package shift

import (
	"context"
	"errors"
	"testing"
	"time"

	"condo-access-control/internal/domain/grants"
	"condo-access-control/internal/ports/export"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID map[string]grants.Grant

	archiveErr   error
	archiveCalls [][]string
}

func newTestRepo(gs ...grants.Grant) *testRepo {
	r := &testRepo{byID: map[string]grants.Grant{}}
	for _, g := range gs {
		r.byID[g.ID] = g
	}
	return r
}

func (r *testRepo) Create(ctx context.Context, g grants.Grant) error { return nil }
func (r *testRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	g, ok := r.byID[id]
	if !ok {
		return grants.Grant{}, grants.ErrNotFound
	}
	return g, nil
}
func (r *testRepo) Transition(ctx context.Context, id string, expected, next grants.Status, field grants.TimeField, at time.Time) (grants.Grant, error) {
	return grants.Grant{}, errors.New("unused")
}

func (r *testRepo) QueryActive(ctx context.Context) ([]grants.Grant, error) {
	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.Status == grants.StatusPendiente || g.Status == grants.StatusEnSitio {
			out = append(out, g)
		}
	}
	grants.SortActive(out)
	return out, nil
}

func (r *testRepo) QueryHistory(ctx context.Context, limit int) ([]grants.Grant, error) {
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

func (r *testRepo) QueryRadar(ctx context.Context, authorID string) ([]grants.Grant, error) {
	return nil, nil
}
func (r *testRepo) QueryByAuthor(ctx context.Context, authorID string) ([]grants.Grant, error) {
	return nil, nil
}

func (r *testRepo) ArchiveBatch(ctx context.Context, ids []string) error {
	r.archiveCalls = append(r.archiveCalls, ids)
	if r.archiveErr != nil {
		return r.archiveErr
	}
	for _, id := range ids {
		g := r.byID[id]
		g.Archived = true
		r.byID[id] = g
	}
	return nil
}

func (r *testRepo) Subscribe(ctx context.Context, f grants.Filter) (<-chan grants.Change, error) {
	ch := make(chan grants.Change)
	close(ch)
	return ch, nil
}

type testExporter struct {
	err  error
	last export.Report
}

func (e *testExporter) Export(ctx context.Context, rep export.Report) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	e.last = rep
	return "Guardia_test.csv", nil
}

func fixtures() []grants.Grant {
	exit1 := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	exit2 := time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)
	exit3 := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)

	return []grants.Grant{
		{ID: "a-1", Kind: grants.KindVisitante, VisitorName: "Ana", VisitorIDNumber: "1", Status: grants.StatusPendiente},
		{ID: "a-2", Kind: grants.KindVisitante, VisitorName: "Beto", VisitorIDNumber: "2", Status: grants.StatusEnSitio},
		{ID: "h-1", Kind: grants.KindVisitante, VisitorName: "Caro", VisitorIDNumber: "3", Status: grants.StatusSalida, ExitTime: &exit1},
		{ID: "h-2", Kind: grants.KindVisitante, VisitorName: "Dino", VisitorIDNumber: "4", Status: grants.StatusSalida, ExitTime: &exit2},
		{ID: "h-3", Kind: grants.KindVisitante, VisitorName: "Eva", VisitorIDNumber: "5", Status: grants.StatusSalida, ExitTime: &exit3},
	}
}

func TestProcessor_Close_ArchivesHistoryOnly(t *testing.T) {
	repo := newTestRepo(fixtures()...)
	exporter := &testExporter{}
	p := NewProcessor(repo, exporter, nil)

	summary, err := p.Close(context.Background())
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	if summary.Rows != 5 {
		t.Errorf("rows = %d, want 5 (2 activos + 3 salidas)", summary.Rows)
	}
	if summary.Archived != 3 {
		t.Errorf("archived = %d, want 3", summary.Archived)
	}
	if summary.ArtifactName != "Guardia_test.csv" {
		t.Errorf("artifact = %q", summary.ArtifactName)
	}

	// El historial quedó archivado; los activos siguen intactos.
	for _, id := range []string{"h-1", "h-2", "h-3"} {
		g, _ := repo.GetByID(context.Background(), id)
		if !g.Archived {
			t.Errorf("%s not archived", id)
		}
		if g.Status != grants.StatusSalida {
			t.Errorf("%s status changed on archive: %s", id, g.Status)
		}
	}
	for _, id := range []string{"a-1", "a-2"} {
		g, _ := repo.GetByID(context.Background(), id)
		if g.Archived {
			t.Errorf("active grant %s must not be archived", id)
		}
	}

	// El reporte lleva primero la cola activa y luego el historial.
	if len(exporter.last.Rows) != 5 {
		t.Fatalf("exported rows = %d", len(exporter.last.Rows))
	}
	if exporter.last.Rows[0].Status != string(grants.StatusEnSitio) {
		t.Errorf("first row should be the on-site grant, got %s", exporter.last.Rows[0].Status)
	}

	// Un segundo cierre inmediato reporta los activos que quedan pero no
	// vuelve a archivar nada.
	second, err := p.Close(context.Background())
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if second.Rows != 2 || second.Archived != 0 {
		t.Errorf("second close rows=%d archived=%d, want 2/0", second.Rows, second.Archived)
	}
	if len(repo.archiveCalls) != 1 {
		t.Errorf("second close re-archived: %v", repo.archiveCalls)
	}
}

func TestProcessor_Close_ExportFailureArchivesNothing(t *testing.T) {
	repo := newTestRepo(fixtures()...)
	exporter := &testExporter{err: errors.New("disk full")}
	p := NewProcessor(repo, exporter, nil)

	if _, err := p.Close(context.Background()); err == nil {
		t.Fatal("expected export error")
	}
	if len(repo.archiveCalls) != 0 {
		t.Fatalf("export failure must not archive, calls=%v", repo.archiveCalls)
	}
	for _, id := range []string{"h-1", "h-2", "h-3"} {
		g, _ := repo.GetByID(context.Background(), id)
		if g.Archived {
			t.Errorf("%s archived despite export failure", id)
		}
	}
}

func TestProcessor_Close_ArchiveFailurePropagates(t *testing.T) {
	repo := newTestRepo(fixtures()...)
	repo.archiveErr = grants.ErrPartialArchive
	p := NewProcessor(repo, &testExporter{}, nil)

	if _, err := p.Close(context.Background()); !errors.Is(err, grants.ErrPartialArchive) {
		t.Fatalf("expected ErrPartialArchive, got %v", err)
	}
}

func TestProcessor_Close_EmptyShift(t *testing.T) {
	p := NewProcessor(newTestRepo(), &testExporter{}, nil)
	if _, err := p.Close(context.Background()); !errors.Is(err, ErrEmptyShift) {
		t.Fatalf("expected ErrEmptyShift, got %v", err)
	}
}
