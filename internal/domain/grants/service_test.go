package grants

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"condo-access-control/internal/ports/directory"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Grant
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Grant{}}
}

func (r *testRepo) Create(ctx context.Context, g Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[g.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[id]
	if !ok {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

func (r *testRepo) Transition(ctx context.Context, id string, expected, next Status, field TimeField, at time.Time) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[id]
	if !ok {
		return Grant{}, ErrNotFound
	}
	if g.Status != expected {
		return Grant{}, TransitionConflict(g.Status, next)
	}
	g.Status = next
	t := at
	switch field {
	case FieldEntryTime:
		g.EntryTime = &t
	case FieldExitTime:
		g.ExitTime = &t
	}
	r.byID[id] = g
	return g, nil
}

func (r *testRepo) QueryActive(ctx context.Context) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.Status == StatusPendiente || g.Status == StatusEnSitio {
			out = append(out, g)
		}
	}
	SortActive(out)
	return out, nil
}

func (r *testRepo) QueryHistory(ctx context.Context, limit int) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.Status == StatusSalida && !g.Archived {
			out = append(out, g)
		}
	}
	SortHistory(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *testRepo) QueryRadar(ctx context.Context, authorID string) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.Status == StatusEnSitio && g.AuthorID == authorID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) QueryByAuthor(ctx context.Context, authorID string) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.AuthorID == authorID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) ArchiveBatch(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		g, ok := r.byID[id]
		if !ok || g.Status != StatusSalida {
			return ErrPartialArchive
		}
	}
	for _, id := range ids {
		g := r.byID[id]
		g.Archived = true
		r.byID[id] = g
	}
	return nil
}

func (r *testRepo) Subscribe(ctx context.Context, f Filter) (<-chan Change, error) {
	ch := make(chan Change)
	close(ch)
	return ch, nil
}

// -------------------------
// Test collaborators
// -------------------------

type testBilling struct {
	allow bool
	err   error
	calls int
}

func (b *testBilling) MayCreate(ctx context.Context, residentID string) (bool, error) {
	b.calls++
	return b.allow, b.err
}

type testDirectory struct {
	unit        string
	displayName string
	err         error
}

func (d *testDirectory) Resolve(ctx context.Context, userID string) (directory.Entry, error) {
	if d.err != nil {
		return directory.Entry{}, d.err
	}
	return directory.Entry{Unit: d.unit, DisplayName: d.displayName}, nil
}

type testNotifier struct {
	mu    sync.Mutex
	seen  []Grant
	calls int
}

func (n *testNotifier) NotifyArrival(g Grant) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.seen = append(n.seen, g)
}

func createInput() CreateInput {
	return CreateInput{
		Kind:            KindVisitante,
		VisitorName:     "Ana Pérez",
		VisitorIDNumber: "8-123-456",
		AuthorID:        "resident-1",
		FallbackUnit:    "A-1",
	}
}

func TestService_Create_SnapshotsResidentFromDirectory(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, ServiceOptions{
		Directory: &testDirectory{unit: "Torre B-3C", displayName: "Luis Gómez"},
	})

	g, err := svc.Create(context.Background(), createInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.ID == "" {
		t.Fatal("expected generated id")
	}
	if g.Status != StatusPendiente {
		t.Fatalf("status = %s, want PENDIENTE", g.Status)
	}
	if g.DestinationUnit != "Torre B-3C" || g.OwnerDisplayName != "Luis Gómez" {
		t.Fatalf("directory snapshot not applied: unit=%q name=%q", g.DestinationUnit, g.OwnerDisplayName)
	}

	stored, err := repo.GetByID(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("grant not persisted: %v", err)
	}
	if stored.DestinationUnit != "Torre B-3C" {
		t.Fatalf("persisted snapshot mismatch: %q", stored.DestinationUnit)
	}
}

func TestService_Create_DirectoryDownFallsBackToClaims(t *testing.T) {
	svc := NewService(newTestRepo(), ServiceOptions{
		Directory: &testDirectory{err: errors.New("directory down")},
	})

	in := createInput()
	in.FallbackUnit = "A-1"
	in.FallbackDisplayName = "Luis"

	g, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create with directory down: %v", err)
	}
	if g.DestinationUnit != "A-1" || g.OwnerDisplayName != "Luis" {
		t.Fatalf("fallback snapshot not applied: unit=%q name=%q", g.DestinationUnit, g.OwnerDisplayName)
	}
}

func TestService_Create_DebtorBlocked(t *testing.T) {
	svc := NewService(newTestRepo(), ServiceOptions{
		Billing: &testBilling{allow: false},
	})

	if _, err := svc.Create(context.Background(), createInput()); !errors.Is(err, ErrDebtorBlocked) {
		t.Fatalf("expected ErrDebtorBlocked, got %v", err)
	}
}

func TestService_Create_BillingDownFailsOpen(t *testing.T) {
	billing := &testBilling{allow: false, err: errors.New("billing down")}
	svc := NewService(newTestRepo(), ServiceOptions{Billing: billing})

	if _, err := svc.Create(context.Background(), createInput()); err != nil {
		t.Fatalf("billing outage must not block creation: %v", err)
	}
	if billing.calls != 1 {
		t.Fatalf("billing gate not consulted: %d calls", billing.calls)
	}
}

func TestService_AdmitSetsEntryAndNotifiesOnce(t *testing.T) {
	repo := newTestRepo()
	notifier := &testNotifier{}
	svc := NewService(repo, ServiceOptions{Notifier: notifier})

	g, err := svc.Create(context.Background(), createInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	admitted, err := svc.Admit(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if admitted.Status != StatusEnSitio {
		t.Fatalf("status = %s, want EN_SITIO", admitted.Status)
	}
	if admitted.EntryTime == nil {
		t.Fatal("entry time not set")
	}
	if notifier.calls != 1 {
		t.Fatalf("expected exactly one arrival notice, got %d", notifier.calls)
	}

	// Segundo admit: la precondición ya no se cumple, es stale y no
	// dispara otro aviso.
	if _, err := svc.Admit(context.Background(), g.ID); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("double admit: expected ErrStaleTransition, got %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("stale admit must not notify again, got %d calls", notifier.calls)
	}
}

func TestService_ConcurrentDoubleAdmit_OneWinner(t *testing.T) {
	repo := newTestRepo()
	notifier := &testNotifier{}
	svc := NewService(repo, ServiceOptions{Notifier: notifier})

	g, err := svc.Create(context.Background(), createInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const scanners = 8
	errs := make(chan error, scanners)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < scanners; i++ {
		go func() {
			start.Wait()
			_, err := svc.Admit(context.Background(), g.ID)
			errs <- err
		}()
	}
	start.Done()

	var wins, stales int
	for i := 0; i < scanners; i++ {
		err := <-errs
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrStaleTransition):
			stales++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if wins != 1 || stales != scanners-1 {
		t.Fatalf("wins=%d stales=%d, want 1/%d", wins, stales, scanners-1)
	}

	stored, _ := repo.GetByID(context.Background(), g.ID)
	if stored.EntryTime == nil {
		t.Fatal("entry time missing after race")
	}
	if notifier.calls != 1 {
		t.Fatalf("race must notify exactly once, got %d", notifier.calls)
	}
}

func TestService_DepartLifecycle(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, ServiceOptions{})

	g, err := svc.Create(context.Background(), createInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Salida sin entrada previa: edge ilegal, no carrera.
	if _, err := svc.Depart(context.Background(), g.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("depart on pending: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.Admit(context.Background(), g.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	departed, err := svc.Depart(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("Depart: %v", err)
	}
	if departed.Status != StatusSalida {
		t.Fatalf("status = %s, want SALIDA", departed.Status)
	}
	if departed.ExitTime == nil {
		t.Fatal("exit time not set")
	}

	if _, err := svc.Depart(context.Background(), g.ID); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("double depart: expected ErrStaleTransition, got %v", err)
	}
}

func TestService_ScanResolvesOnlyActiveGrants(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, ServiceOptions{})

	g, err := svc.Create(context.Background(), createInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := svc.Scan(context.Background(), " "+g.ID+" ")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if found.ID != g.ID {
		t.Fatalf("scanned wrong grant: %s", found.ID)
	}

	if _, err := svc.Scan(context.Background(), "no-such-token"); !errors.Is(err, ErrUnrecognizedCode) {
		t.Fatalf("fake token: expected ErrUnrecognizedCode, got %v", err)
	}

	// Tras la salida el mismo QR deja de resolver: el token caduca con el
	// conjunto activo, sin estado extra.
	if _, err := svc.Admit(context.Background(), g.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := svc.Depart(context.Background(), g.ID); err != nil {
		t.Fatalf("Depart: %v", err)
	}
	if _, err := svc.Scan(context.Background(), g.ID); !errors.Is(err, ErrUnrecognizedCode) {
		t.Fatalf("token after exit: expected ErrUnrecognizedCode, got %v", err)
	}
}

func TestService_SearchActiveBySubstring(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, ServiceOptions{})

	in := createInput()
	in.VisitorIDNumber = "8-987-654"
	g, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := svc.SearchActive(context.Background(), "987")
	if err != nil {
		t.Fatalf("SearchActive: %v", err)
	}
	if found.ID != g.ID {
		t.Fatalf("search resolved wrong grant: %s", found.ID)
	}

	if _, err := svc.SearchActive(context.Background(), "000"); !errors.Is(err, ErrUnrecognizedCode) {
		t.Fatalf("no match: expected ErrUnrecognizedCode, got %v", err)
	}
	if _, err := svc.SearchActive(context.Background(), "  "); !errors.Is(err, ErrUnrecognizedCode) {
		t.Fatalf("blank query: expected ErrUnrecognizedCode, got %v", err)
	}
}
