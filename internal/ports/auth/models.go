package auth

// Roles que maneja el edificio. El core solo distingue residente (crea
// pases) y seguridad (opera la garita).
const (
	RoleResident = "RESIDENT"
	RoleSecurity = "SECURITY"
)

// Claims representa la información extraída del token de sesión.
type Claims struct {
	UserID      string
	DisplayName string
	Role        string
	Unit        string
}
