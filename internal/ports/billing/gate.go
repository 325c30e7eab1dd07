package billing

import "context"

// Gate es el colaborador de facturación: responde si el estado de deuda
// del residente permite crear pases. Se consulta una sola vez, al crear.
type Gate interface {
	MayCreate(ctx context.Context, residentID string) (bool, error)
}
