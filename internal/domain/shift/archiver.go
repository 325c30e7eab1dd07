// Package shift implementa el cierre de guardia: snapshot del estado
// actual, exportación del reporte y archivado atómico del historial.
package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"condo-access-control/internal/domain/grants"
	"condo-access-control/internal/ports/export"

	"go.uber.org/zap"
)

// ErrEmptyShift: no hay nada que reportar ni archivar en este turno.
var ErrEmptyShift = errors.New("no records in current shift")

const defaultHistoryLimit = 100

type Processor struct {
	repo     grants.Repository
	exporter export.Exporter
	log      *zap.Logger

	historyLimit int
	now          func() time.Time
}

func NewProcessor(repo grants.Repository, exporter export.Exporter, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		repo:         repo,
		exporter:     exporter,
		log:          log,
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
	}
}

// Summary es el resultado del cierre que ve el operador.
type Summary struct {
	ClosedAt     time.Time `json:"closed_at"`
	Rows         int       `json:"rows"`
	Archived     int       `json:"archived"`
	ArtifactName string    `json:"artifact_name"`
}

// Close ejecuta el cierre de guardia:
//
//  1. Congela el conjunto de ids del historial y de la cola activa.
//  2. Exporta el reporte con exactamente ese snapshot.
//  3. Archiva exactamente los ids de historial capturados, como un batch
//     todo-o-nada.
//
// Una SALIDA registrada después del snapshot NO entra en esta pasada: le
// pertenece al reporte del turno siguiente. Si la exportación falla no se
// archiva nada; si el batch falla, el store garantiza que no quedó ningún
// registro a medio archivar y el operador reintenta el cierre completo.
func (p *Processor) Close(ctx context.Context) (Summary, error) {
	active, err := p.repo.QueryActive(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("snapshot active queue: %w", err)
	}
	history, err := p.repo.QueryHistory(ctx, p.historyLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("snapshot history log: %w", err)
	}
	if len(active) == 0 && len(history) == 0 {
		return Summary{}, ErrEmptyShift
	}

	closedAt := p.now()
	rep := BuildReport(closedAt, active, history)

	artifact, err := p.exporter.Export(ctx, rep)
	if err != nil {
		return Summary{}, fmt.Errorf("export shift report: %w", err)
	}

	ids := make([]string, 0, len(history))
	for _, g := range history {
		ids = append(ids, g.ID)
	}
	if len(ids) > 0 {
		if err := p.repo.ArchiveBatch(ctx, ids); err != nil {
			return Summary{}, err
		}
	}

	p.log.Info("shift closed",
		zap.Int("rows", len(rep.Rows)),
		zap.Int("archived", len(ids)),
		zap.String("artifact", artifact))

	return Summary{
		ClosedAt:     closedAt,
		Rows:         len(rep.Rows),
		Archived:     len(ids),
		ArtifactName: artifact,
	}, nil
}
