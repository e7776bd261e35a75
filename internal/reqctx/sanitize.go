package reqctx

import (
	"net/http"
	"strings"
)

const redacted = "[REDACTED]"

// secretHeaders are replaced with a marker before the header copy is stored.
var secretHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"x-auth-token":        {},
}

// piiBodyFields are dropped from captured bodies entirely. Free-form personal
// data never belongs on a snapshot that outlives the request handler.
var piiBodyFields = map[string]struct{}{
	"password":    {},
	"secret":      {},
	"token":       {},
	"apikey":      {},
	"email":       {},
	"phone":       {},
	"address":     {},
	"birthday":    {},
	"creditcard":  {},
	"cardnumber":  {},
	"accesstoken": {},
}

func sanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if _, secret := secretHeaders[key]; secret {
			out[key] = redacted
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func sanitizeBody(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for key, value := range body {
		if _, pii := piiBodyFields[strings.ToLower(key)]; pii {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = sanitizeBody(nested)
			continue
		}
		out[key] = value
	}
	return out
}
