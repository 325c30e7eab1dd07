package auth

import "context"

// AuthVerifier valida un token de sesión ya emitido (la identidad viene
// autenticada de afuera) y devuelve sus claims.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
