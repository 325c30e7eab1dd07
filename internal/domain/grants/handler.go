package grants

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"condo-access-control/internal/middleware"
	"condo-access-control/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

const defaultHistoryLimit = 100

func RegisterRoutes(r chi.Router, svc *Service) {
	// Residente
	r.Route("/grants", func(gr chi.Router) {
		gr.Post("/", createGrantHandler(svc))
		gr.Get("/active", listActiveHandler(svc))
		gr.Get("/active/search", searchActiveHandler(svc))
		gr.Get("/history", listHistoryHandler(svc))
		gr.Post("/{grantID}/admit", admitHandler(svc))
		gr.Post("/{grantID}/depart", departHandler(svc))
	})

	// Garita
	r.Post("/gate/scan", scanHandler(svc))

	// Residente: sus propios pases
	r.Get("/me/grants", listMyGrantsHandler(svc))
}

type createGrantRequest struct {
	Kind            string `json:"kind"`
	VisitorName     string `json:"visitor_name"`
	VisitorIDNumber string `json:"visitor_id_number"`
	VehiclePlate    string `json:"vehicle_plate"`
	VehicleModel    string `json:"vehicle_model"`
	CompanyDetail   string `json:"company_detail"`
}

type grantResponse struct {
	ID               string     `json:"id"`
	Kind             Kind       `json:"kind"`
	VisitorName      string     `json:"visitor_name"`
	VisitorIDNumber  string     `json:"visitor_id_number"`
	VehiclePlate     string     `json:"vehicle_plate,omitempty"`
	VehicleModel     string     `json:"vehicle_model,omitempty"`
	CompanyDetail    string     `json:"company_detail,omitempty"`
	DestinationUnit  string     `json:"destination_unit"`
	OwnerDisplayName string     `json:"owner_display_name"`
	AuthorID         string     `json:"author_id"`
	Status           Status     `json:"status"`
	Archived         bool       `json:"archived"`
	CreatedAt        time.Time  `json:"created_at"`
	EntryTime        *time.Time `json:"entry_time,omitempty"`
	ExitTime         *time.Time `json:"exit_time,omitempty"`
}

type createGrantResponse struct {
	grantResponse
	QRURL     string `json:"qr_url"`
	ShareText string `json:"share_text"`
}

type scanRequest struct {
	Token string `json:"token"`
}

func createGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleResident)
		if !ok {
			return
		}

		var req createGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.Create(r.Context(), CreateInput{
			Kind:                Kind(strings.TrimSpace(req.Kind)),
			VisitorName:         req.VisitorName,
			VisitorIDNumber:     req.VisitorIDNumber,
			VehiclePlate:        req.VehiclePlate,
			VehicleModel:        req.VehicleModel,
			CompanyDetail:       req.CompanyDetail,
			AuthorID:            claims.UserID,
			FallbackUnit:        claims.Unit,
			FallbackDisplayName: claims.DisplayName,
		})
		if err != nil {
			writeGrantError(w, err)
			return
		}

		qrURL := QRImageURL(svc.QRRenderBase(), g.ID)
		writeJSON(w, http.StatusCreated, createGrantResponse{
			grantResponse: toGrantResponse(g),
			QRURL:         qrURL,
			ShareText:     ShareText(g, qrURL),
		})
	}
}

func scanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RoleSecurity); !ok {
			return
		}

		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.Scan(r.Context(), req.Token)
		if err != nil {
			writeGrantError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func searchActiveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RoleSecurity); !ok {
			return
		}

		g, err := svc.SearchActive(r.Context(), r.URL.Query().Get("id_number"))
		if err != nil {
			writeGrantError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func listActiveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RoleSecurity); !ok {
			return
		}

		items, err := svc.Active(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

func listHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RoleSecurity); !ok {
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		items, err := svc.History(r.Context(), limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

func listMyGrantsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleResident)
		if !ok {
			return
		}

		items, err := svc.OwnGrants(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

func admitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RoleSecurity); !ok {
			return
		}

		g, err := svc.Admit(r.Context(), chi.URLParam(r, "grantID"))
		if err != nil {
			writeGrantError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func departHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RoleSecurity); !ok {
			return
		}

		g, err := svc.Depart(r.Context(), chi.URLParam(r, "grantID"))
		if err != nil {
			writeGrantError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func requireRole(w http.ResponseWriter, r *http.Request, role string) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	if claims.Role != role {
		http.Error(w, "forbidden", http.StatusForbidden)
		return auth.Claims{}, false
	}
	return claims, true
}

func writeGrantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrDebtorBlocked):
		http.Error(w, "creación bloqueada por morosidad", http.StatusForbidden)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrUnrecognizedCode):
		http.Error(w, "pase inválido o ya utilizado", http.StatusNotFound)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrStaleTransition):
		// Carrera benigna del doble escaneo: la consola lo trata como
		// no-op y vuelve al escaneo.
		writeJSON(w, http.StatusConflict, map[string]string{"code": "stale"})
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, "transición no permitida", http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		ID:               g.ID,
		Kind:             g.Kind,
		VisitorName:      g.VisitorName,
		VisitorIDNumber:  g.VisitorIDNumber,
		VehiclePlate:     g.VehiclePlate,
		VehicleModel:     g.VehicleModel,
		CompanyDetail:    g.CompanyDetail,
		DestinationUnit:  g.DestinationUnit,
		OwnerDisplayName: g.OwnerDisplayName,
		AuthorID:         g.AuthorID,
		Status:           g.Status,
		Archived:         g.Archived,
		CreatedAt:        g.CreatedAt,
		EntryTime:        g.EntryTime,
		ExitTime:         g.ExitTime,
	}
}

func toGrantResponses(items []Grant) []grantResponse {
	out := make([]grantResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toGrantResponse(g))
	}
	return out
}

// writeJSON está duplicado a propósito en los handlers de cada módulo para
// no crear helpers compartidos antes de tiempo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
