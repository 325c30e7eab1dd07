package grants

import (
	"fmt"
	"net/url"
	"strings"
)

// El token del código escaneable ES el id del grant: opaco, no derivado de
// datos del visitante, e implícitamente caduco en cuanto el pase abandona
// el conjunto activo. Decodificar solo extrae el string crudo; la validez
// se establece re-resolviendo contra la cola activa viva, nunca confiando
// en el valor decodificado.

const defaultQRRenderBase = "https://api.qrserver.com/v1/create-qr-code/"

// DecodeToken extrae el payload crudo del escaneo.
func DecodeToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrUnrecognizedCode
	}
	return raw, nil
}

// ResolveActive busca el token dentro del conjunto activo. Un id
// desconocido, ya salido o falso devuelve ErrUnrecognizedCode.
func ResolveActive(token string, active []Grant) (Grant, error) {
	for _, g := range active {
		if g.ID == token {
			return g, nil
		}
	}
	return Grant{}, ErrUnrecognizedCode
}

// QRImageURL arma la URL del servicio externo que renderiza el token como
// imagen escaneable. No hay camino de vuelta desde ese servicio al core.
func QRImageURL(base, token string) string {
	if strings.TrimSpace(base) == "" {
		base = defaultQRRenderBase
	}
	v := url.Values{}
	v.Set("size", "300x300")
	v.Set("data", token)
	return base + "?" + v.Encode()
}

// ShareText arma el mensaje que el residente reenvía por WhatsApp junto
// con el QR.
func ShareText(g Grant, qrURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola *%s*,\n\nTe envío tu acceso autorizado a *%s*.\n\n", g.VisitorName, g.DestinationUnit)
	fmt.Fprintf(&b, "Tipo: %s\n", g.Kind)
	if g.CompanyDetail != "" {
		fmt.Fprintf(&b, "Empresa: %s\n", g.CompanyDetail)
	}
	fmt.Fprintf(&b, "Cédula: %s\n\n", g.VisitorIDNumber)
	fmt.Fprintf(&b, "Presenta este código QR en la garita:\n%s", qrURL)
	return b.String()
}
