package grants

import (
	"context"
	"strings"
	"time"

	"condo-access-control/internal/ports/billing"
	"condo-access-control/internal/ports/directory"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArrivalNotifier recibe el aviso de que una visita acaba de entrar. La
// implementación real despacha el push sin bloquear al caller.
type ArrivalNotifier interface {
	NotifyArrival(g Grant)
}

type Service struct {
	repo      Repository
	billing   billing.Gate
	directory directory.Resolver
	notifier  ArrivalNotifier
	log       *zap.Logger

	qrRenderBase string
	now          func() time.Time
}

type ServiceOptions struct {
	Billing   billing.Gate
	Directory directory.Resolver
	Notifier  ArrivalNotifier
	Logger    *zap.Logger

	// Base del servicio externo que renderiza el QR. Vacío => default.
	QRRenderBase string
}

func NewService(repo Repository, opts ServiceOptions) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:         repo,
		billing:      opts.Billing,
		directory:    opts.Directory,
		notifier:     opts.Notifier,
		log:          log,
		qrRenderBase: opts.QRRenderBase,
		now:          time.Now,
	}
}

type CreateInput struct {
	Kind            Kind
	VisitorName     string
	VisitorIDNumber string
	VehiclePlate    string
	VehicleModel    string
	CompanyDetail   string

	AuthorID string

	// Fallback si el directorio no responde al momento de crear.
	FallbackUnit        string
	FallbackDisplayName string
}

// Create valida, consulta la barrera de morosidad y persiste el pase en
// PENDIENTE. La unidad y el nombre del residente se congelan acá: el pase
// no se vuelve a joinear contra el perfil después.
func (s *Service) Create(ctx context.Context, in CreateInput) (Grant, error) {
	authorID := strings.TrimSpace(in.AuthorID)
	if authorID == "" {
		return Grant{}, ErrInvalidInput
	}

	if s.billing != nil {
		ok, err := s.billing.MayCreate(ctx, authorID)
		if err != nil {
			// Colaborador caído no bloquea la creación; solo la deuda
			// confirmada lo hace.
			s.log.Warn("billing gate unavailable", zap.String("author_id", authorID), zap.Error(err))
		} else if !ok {
			return Grant{}, ErrDebtorBlocked
		}
	}

	unit := strings.TrimSpace(in.FallbackUnit)
	displayName := strings.TrimSpace(in.FallbackDisplayName)
	if s.directory != nil {
		entry, err := s.directory.Resolve(ctx, authorID)
		if err != nil {
			s.log.Warn("directory lookup failed on create", zap.String("author_id", authorID), zap.Error(err))
		} else {
			if strings.TrimSpace(entry.Unit) != "" {
				unit = strings.TrimSpace(entry.Unit)
			}
			if strings.TrimSpace(entry.DisplayName) != "" {
				displayName = strings.TrimSpace(entry.DisplayName)
			}
		}
	}

	g, err := NewGrant(uuid.NewString(), NewGrantInput{
		Kind:             in.Kind,
		VisitorName:      in.VisitorName,
		VisitorIDNumber:  in.VisitorIDNumber,
		VehiclePlate:     in.VehiclePlate,
		VehicleModel:     in.VehicleModel,
		CompanyDetail:    in.CompanyDetail,
		AuthorID:         authorID,
		DestinationUnit:  unit,
		OwnerDisplayName: displayName,
	}, s.now())
	if err != nil {
		return Grant{}, err
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Scan resuelve un token escaneado contra la cola activa viva.
func (s *Service) Scan(ctx context.Context, raw string) (Grant, error) {
	token, err := DecodeToken(raw)
	if err != nil {
		return Grant{}, err
	}
	active, err := s.repo.QueryActive(ctx)
	if err != nil {
		return Grant{}, err
	}
	return ResolveActive(token, active)
}

// SearchActive es la búsqueda manual por cédula del operador (substring,
// como la garita la usa cuando el QR no está a mano).
func (s *Service) SearchActive(ctx context.Context, idNumber string) (Grant, error) {
	idNumber = strings.TrimSpace(idNumber)
	if idNumber == "" {
		return Grant{}, ErrUnrecognizedCode
	}
	active, err := s.repo.QueryActive(ctx)
	if err != nil {
		return Grant{}, err
	}
	for _, g := range active {
		if strings.Contains(g.VisitorIDNumber, idNumber) {
			return g, nil
		}
	}
	return Grant{}, ErrUnrecognizedCode
}

// Admit aplica PENDIENTE→EN_SITIO con precondición optimista y, ya
// commiteada la transición, dispara el aviso de llegada. El despacho es
// fire-and-forget: jamás revierte ni bloquea la transición.
func (s *Service) Admit(ctx context.Context, id string) (Grant, error) {
	g, err := s.transition(ctx, id, StatusPendiente, StatusEnSitio, FieldEntryTime)
	if err != nil {
		return Grant{}, err
	}
	if s.notifier != nil {
		s.notifier.NotifyArrival(g)
	}
	return g, nil
}

// Depart aplica EN_SITIO→SALIDA. No notifica: el aviso es solo de entrada.
func (s *Service) Depart(ctx context.Context, id string) (Grant, error) {
	return s.transition(ctx, id, StatusEnSitio, StatusSalida, FieldExitTime)
}

func (s *Service) transition(ctx context.Context, id string, expected, next Status, field TimeField) (Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Grant{}, ErrInvalidInput
	}
	if err := ValidateTransition(expected, next); err != nil {
		return Grant{}, err
	}
	return s.repo.Transition(ctx, id, expected, next, field, s.now())
}

func (s *Service) Active(ctx context.Context) ([]Grant, error) {
	return s.repo.QueryActive(ctx)
}

func (s *Service) History(ctx context.Context, limit int) ([]Grant, error) {
	return s.repo.QueryHistory(ctx, limit)
}

func (s *Service) OwnGrants(ctx context.Context, authorID string) ([]Grant, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.QueryByAuthor(ctx, authorID)
}

// QRRenderBase expone la base configurada para que el handler arme la URL.
func (s *Service) QRRenderBase() string {
	return s.qrRenderBase
}
