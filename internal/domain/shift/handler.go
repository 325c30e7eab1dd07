package shift

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"condo-access-control/internal/domain/grants"
	"condo-access-control/internal/middleware"
	"condo-access-control/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, p *Processor) {
	r.Post("/shift/close", closeShiftHandler(p))
}

func closeShiftHandler(p *Processor) http.HandlerFunc {
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

		summary, err := p.Close(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, ErrEmptyShift):
				http.Error(w, "no hay registros en el turno", http.StatusUnprocessableEntity)
			case errors.Is(err, grants.ErrPartialArchive):
				http.Error(w, "el archivado no aplicó; reintente el cierre completo", http.StatusInternalServerError)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

// writeJSON está duplicado a propósito en los handlers de cada módulo para
// no crear helpers compartidos antes de tiempo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
