package observability

import (
	"net"
	"net/http"
	"strings"
)

// ClientMeta identifies the device behind a request for event payloads.
type ClientMeta struct {
	DeviceID  string
	RequestID string
	IP        string
}

// ClientMetaFromRequest extracts device id, request id, and client ip. The ip
// honors the first X-Forwarded-For hop when present.
func ClientMetaFromRequest(r *http.Request) ClientMeta {
	return ClientMeta{
		DeviceID:  r.Header.Get("X-Device-Id"),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
