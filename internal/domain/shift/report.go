package shift

import (
	"fmt"
	"time"

	"condo-access-control/internal/domain/grants"
	"condo-access-control/internal/ports/export"
)

const clockLayout = "15:04" // 24h: el orden del reporte no depende de AM/PM

// BuildReport arma las filas del cierre: primero lo que sigue activo en la
// garita, después el historial de salidas del turno.
func BuildReport(closedAt time.Time, active, history []grants.Grant) export.Report {
	rows := make([]export.Row, 0, len(active)+len(history))
	for _, g := range active {
		rows = append(rows, toRow(g))
	}
	for _, g := range history {
		rows = append(rows, toRow(g))
	}
	return export.Report{ClosedAt: closedAt, Rows: rows}
}

func toRow(g grants.Grant) export.Row {
	return export.Row{
		EntryTime:       clock(g.EntryTime, "--:--"),
		ExitTime:        exitCell(g),
		DestinationUnit: g.DestinationUnit,
		VisitorName:     g.VisitorName,
		VisitorIDNumber: g.VisitorIDNumber,
		Detail:          detail(g),
		Status:          string(g.Status),
	}
}

func clock(t *time.Time, empty string) string {
	if t == nil {
		return empty
	}
	return t.Format(clockLayout)
}

func exitCell(g grants.Grant) string {
	if g.ExitTime != nil {
		return g.ExitTime.Format(clockLayout)
	}
	if g.Status == grants.StatusEnSitio {
		return "En Sitio"
	}
	return "Pendiente"
}

func detail(g grants.Grant) string {
	if g.CompanyDetail != "" {
		return fmt.Sprintf("%s (%s)", g.Kind, g.CompanyDetail)
	}
	if g.VehiclePlate != "" {
		return fmt.Sprintf("%s (%s)", g.Kind, g.VehiclePlate)
	}
	return string(g.Kind)
}
