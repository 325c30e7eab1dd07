package grants

import (
	"strings"
	"time"
)

type Kind string

const (
	KindVisitante Kind = "Visitante"
	KindDelivery  Kind = "Delivery"
	KindTaxi      Kind = "Taxi"
	KindMudanza   Kind = "Mudanza"
)

func (k Kind) valid() bool {
	switch k {
	case KindVisitante, KindDelivery, KindTaxi, KindMudanza:
		return true
	}
	return false
}

// RequiresCompany: todo kind distinto de Visitante lleva el nombre de la
// empresa/línea (delivery, taxi, mudanza).
func (k Kind) RequiresCompany() bool {
	return k != KindVisitante
}

type Status string

const (
	StatusPendiente Status = "PENDIENTE"
	StatusEnSitio   Status = "EN_SITIO"
	StatusSalida    Status = "SALIDA"
)

// Grant es un pase de acceso emitido por un residente.
// El id se genera al crear y nunca cambia; es a la vez la clave del store
// y el payload del código QR.
type Grant struct {
	ID string

	Kind Kind

	VisitorName     string
	VisitorIDNumber string

	VehiclePlate string
	VehicleModel string

	// CompanyDetail: empresa o línea. Obligatorio cuando Kind != Visitante.
	CompanyDetail string

	// Snapshot del residente al momento de crear. No se vuelve a resolver.
	DestinationUnit  string
	OwnerDisplayName string

	AuthorID string

	Status   Status
	Archived bool

	CreatedAt time.Time
	EntryTime *time.Time
	ExitTime  *time.Time
}

// NewGrantInput son los campos que aporta el residente.
type NewGrantInput struct {
	Kind            Kind
	VisitorName     string
	VisitorIDNumber string
	VehiclePlate    string
	VehicleModel    string
	CompanyDetail   string

	AuthorID         string
	DestinationUnit  string
	OwnerDisplayName string
}

// NewGrant valida y normaliza en construcción: el resto del sistema nunca
// vuelve a chequear la obligatoriedad por kind.
func NewGrant(id string, in NewGrantInput, now time.Time) (Grant, error) {
	name := strings.TrimSpace(in.VisitorName)
	idNumber := strings.TrimSpace(in.VisitorIDNumber)
	company := strings.TrimSpace(in.CompanyDetail)
	authorID := strings.TrimSpace(in.AuthorID)

	if id == "" || authorID == "" {
		return Grant{}, ErrInvalidInput
	}
	if !in.Kind.valid() {
		return Grant{}, ErrInvalidInput
	}
	if name == "" || idNumber == "" {
		return Grant{}, ErrInvalidInput
	}
	if in.Kind.RequiresCompany() && company == "" {
		return Grant{}, ErrInvalidInput
	}
	if !in.Kind.RequiresCompany() {
		company = ""
	}

	return Grant{
		ID:               id,
		Kind:             in.Kind,
		VisitorName:      name,
		VisitorIDNumber:  idNumber,
		VehiclePlate:     strings.ToUpper(strings.TrimSpace(in.VehiclePlate)),
		VehicleModel:     strings.TrimSpace(in.VehicleModel),
		CompanyDetail:    company,
		DestinationUnit:  strings.TrimSpace(in.DestinationUnit),
		OwnerDisplayName: strings.TrimSpace(in.OwnerDisplayName),
		AuthorID:         authorID,
		Status:           StatusPendiente,
		CreatedAt:        now,
	}, nil
}
