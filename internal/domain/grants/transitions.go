package grants

// Máquina de estados del pase:
//
//	PENDIENTE --admitir--> EN_SITIO --salir--> SALIDA
//
// SALIDA es terminal para la máquina; archived es un flag aparte que solo
// aplica el cierre de guardia y nunca una transición. El status es
// monótono: jamás regresa.

// CanTransition reporta si el edge solicitado es legal.
func CanTransition(from, to Status) bool {
	switch {
	case from == StatusPendiente && to == StatusEnSitio:
		return true
	case from == StatusEnSitio && to == StatusSalida:
		return true
	}
	return false
}

// ValidateTransition rechaza con ErrInvalidTransition cualquier edge fuera
// de los dos legales (incluye PENDIENTE→SALIDA directo y SALIDA→lo que sea).
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}

// TransitionConflict clasifica un fallo del compare-and-set: si el estado
// actual ya es el destino, fue una doble operación sobre el mismo pase
// (carrera benigna); cualquier otro desvío es un edge ilegal.
func TransitionConflict(actual, next Status) error {
	if actual == next {
		return ErrStaleTransition
	}
	return ErrInvalidTransition
}

// TimeField indica qué timestamp fija una transición exitosa.
type TimeField string

const (
	FieldEntryTime TimeField = "entry_time"
	FieldExitTime  TimeField = "exit_time"
)
