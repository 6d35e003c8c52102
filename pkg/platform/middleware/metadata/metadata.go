package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"safepilgrim/pkg/requestcontext"
)

// ClientMetadata extracts client IP, User-Agent and a device label from the
// request and adds them to the context for handlers, services and audit.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		userAgent := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, userAgent, DeviceLabel(userAgent))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceLabel summarises a User-Agent as "<browser> on <os>", "bot:<name>",
// or "unknown" when nothing useful can be parsed.
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	name, _ := ua.Browser()
	if ua.Bot() {
		if name == "" {
			return "bot"
		}
		return "bot:" + name
	}

	os := ua.OS()
	switch {
	case name != "" && os != "":
		label := name + " on " + os
		if ua.Mobile() {
			label += " (mobile)"
		}
		return label
	case name != "":
		return name
	case os != "":
		return os
	default:
		return "unknown"
	}
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if addr := r.RemoteAddr; addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return addr
	}

	return "unknown"
}
