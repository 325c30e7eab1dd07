package views

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"condo-access-control/internal/domain/grants"
	"condo-access-control/internal/middleware"
	"condo-access-control/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// Endpoints SSE: la consola de garita y el radar del residente mantienen
// la conexión abierta y reciben eventos hasta que el cliente la cierra
// (logout, navegación); la cancelación del request context desarma la
// suscripción y libera todo.
func RegisterRoutes(r chi.Router, s *Synchronizer) {
	r.Get("/gate/watch", watchGateHandler(s))
	r.Get("/me/radar", radarHandler(s))
}

type activeEntry struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	VisitorName     string     `json:"visitor_name"`
	VisitorIDNumber string     `json:"visitor_id_number"`
	DestinationUnit string     `json:"destination_unit"`
	CompanyDetail   string     `json:"company_detail,omitempty"`
	Status          string     `json:"status"`
	EntryTime       *time.Time `json:"entry_time,omitempty"`
}

type radarEvent struct {
	GrantID     string    `json:"grant_id"`
	VisitorName string    `json:"visitor_name"`
	Kind        string    `json:"kind"`
	At          time.Time `json:"at"`
}

func watchGateHandler(s *Synchronizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleSecurity {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		snapshots, err := s.WatchActive(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		sseHeaders(w)
		flusher.Flush()

		for snap := range snapshots {
			entries := make([]activeEntry, 0, len(snap))
			for _, g := range snap {
				entries = append(entries, toActiveEntry(g))
			}
			writeSSE(w, "active", entries)
			flusher.Flush()
		}
	}
}

func radarHandler(s *Synchronizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleResident {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		arrivals, err := s.WatchRadar(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		sseHeaders(w)
		flusher.Flush()

		for a := range arrivals {
			writeSSE(w, "arrival", radarEvent{
				GrantID:     a.Grant.ID,
				VisitorName: a.Grant.VisitorName,
				Kind:        string(a.Grant.Kind),
				At:          a.At,
			})
			flusher.Flush()
		}
	}
}

func toActiveEntry(g grants.Grant) activeEntry {
	return activeEntry{
		ID:              g.ID,
		Kind:            string(g.Kind),
		VisitorName:     g.VisitorName,
		VisitorIDNumber: g.VisitorIDNumber,
		DestinationUnit: g.DestinationUnit,
		CompanyDetail:   g.CompanyDetail,
		Status:          string(g.Status),
		EntryTime:       g.EntryTime,
	}
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}
