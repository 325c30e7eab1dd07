package push

import "context"

// Message es la notificación que recibe el residente cuando su visita entra.
type Message struct {
	To       string
	Title    string
	Body     string
	Priority string
}

// Sender entrega el mensaje al servicio de push externo. El core no asume
// reintentos del lado del servicio: éxito o error, una vez por llamada.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
