// Package csvreport materializa el reporte de cierre de guardia como un
// CSV en disco, listo para adjuntar o imprimir.
package csvreport

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"condo-access-control/internal/ports/export"
)

var header = []string{"Entrada", "Salida", "Destino", "Nombre", "Cédula", "Detalle", "Estado"}

type Exporter struct {
	dir string
}

// NewExporter escribe los reportes bajo dir; vacío => directorio actual.
func NewExporter(dir string) *Exporter {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	return &Exporter{dir: dir}
}

// Export escribe el CSV y devuelve el nombre del archivo generado.
// Un reporte por cierre: el timestamp en el nombre evita pisadas.
func (e *Exporter) Export(ctx context.Context, rep export.Report) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("Guardia_%s.csv", rep.ClosedAt.Format("2006-01-02_1504"))
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}
	for _, row := range rep.Rows {
		rec := []string{
			row.EntryTime,
			row.ExitTime,
			row.DestinationUnit,
			row.VisitorName,
			row.VisitorIDNumber,
			row.Detail,
			row.Status,
		}
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush report: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync report: %w", err)
	}

	return name, nil
}
