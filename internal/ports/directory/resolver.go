package directory

import "context"

// Entry es lo que el directorio de usuarios sabe de un residente.
type Entry struct {
	PushToken   string
	DisplayName string
	Unit        string
}

// Resolver resuelve el autor de un pase contra el directorio externo.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (Entry, error)
}
