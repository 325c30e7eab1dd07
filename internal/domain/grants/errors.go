package grants

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")

	// ErrInvalidTransition: edge ilegal del ciclo de vida. No debería
	// ocurrir en flujos correctos; se responde con rechazo genérico.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStaleTransition: el compare-and-set perdió la carrera (doble
	// escaneo del operador). Es benigno: no muta nada y el operador
	// vuelve a escanear.
	ErrStaleTransition = errors.New("stale transition")

	// ErrUnrecognizedCode: el token escaneado no resuelve contra la cola
	// activa (pase inexistente, ya salió, o falso).
	ErrUnrecognizedCode = errors.New("unrecognized code")

	// ErrDebtorBlocked: la morosidad del residente bloquea la creación.
	ErrDebtorBlocked = errors.New("grant creation blocked by debt")

	// ErrPartialArchive: el batch de archivado no aplicó completo. El
	// store garantiza todo-o-nada, así que ante este error ningún
	// registro quedó archivado y el cierre se reintenta entero.
	ErrPartialArchive = errors.New("archive batch incomplete")
)
