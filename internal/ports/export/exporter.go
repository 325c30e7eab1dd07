package export

import (
	"context"
	"time"
)

// Row es una fila del reporte de cierre de guardia, ya formateada.
type Row struct {
	EntryTime       string
	ExitTime        string
	DestinationUnit string
	VisitorName     string
	VisitorIDNumber string
	Detail          string
	Status          string
}

// Report es la lista ordenada de snapshots que consume el exportador.
type Report struct {
	ClosedAt time.Time
	Rows     []Row
}

// Exporter produce el artefacto descargable del reporte y devuelve su
// nombre. No forma parte de la lógica del core.
type Exporter interface {
	Export(ctx context.Context, rep Report) (string, error)
}
