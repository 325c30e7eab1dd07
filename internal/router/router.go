package router

import (
	"net/http"
	"os"

	"condo-access-control/internal/adapters/export/csvreport"
	mem "condo-access-control/internal/adapters/storage/memory"
	"condo-access-control/internal/domain/grants"
	"condo-access-control/internal/domain/notify"
	"condo-access-control/internal/domain/shift"
	"condo-access-control/internal/domain/views"
	"condo-access-control/internal/middleware"
	"condo-access-control/internal/ports/auth"
	"condo-access-control/internal/ports/billing"
	"condo-access-control/internal/ports/directory"
	"condo-access-control/internal/ports/export"
	"condo-access-control/internal/ports/push"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Repo opcional: nil => store en memoria (dev y tests).
	Repo grants.Repository

	// Adapters opcionales: nil desactiva la integración correspondiente
	// sin romper el resto del flujo.
	Directory directory.Resolver
	Push      push.Sender
	Billing   billing.Gate
	Exporter  export.Exporter

	Logger       *zap.Logger
	QRRenderBase string
}

// Result expone, además del handler, las piezas que main necesita tocar
// en el shutdown (hoy solo el dispatcher de notificaciones).
type Result struct {
	Handler    http.Handler
	Dispatcher *notify.Dispatcher
}

func NewRouter(opts Options) Result {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	repo := opts.Repo
	if repo == nil {
		repo = mem.NewGrantsRepo()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var dispatcher *notify.Dispatcher
	var notifier grants.ArrivalNotifier
	if opts.Directory != nil && opts.Push != nil {
		dispatcher = notify.NewDispatcher(opts.Directory, opts.Push, notify.Options{Logger: log})
		notifier = dispatcher
	}

	grantsSvc := grants.NewService(repo, grants.ServiceOptions{
		Billing:      opts.Billing,
		Directory:    opts.Directory,
		Notifier:     notifier,
		Logger:       log,
		QRRenderBase: opts.QRRenderBase,
	})
	exporter := opts.Exporter
	if exporter == nil {
		exporter = csvreport.NewExporter(os.TempDir())
	}

	sync := views.NewSynchronizer(repo, log)
	processor := shift.NewProcessor(repo, exporter, log)

	grants.RegisterRoutes(r, grantsSvc)
	views.RegisterRoutes(r, sync)
	shift.RegisterRoutes(r, processor)

	return Result{Handler: r, Dispatcher: dispatcher}
}
