package middleware

import (
	"net"
	"net/http"
	"strings"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
)

// ClientMetadata copies the caller's IP and User-Agent into the request
// context for the Engine. Run it after chi's RealIP so RemoteAddr already
// reflects trusted proxy headers.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goSessionAuth.WithClientIP(r.Context(), ClientIP(r))
		ctx = goSessionAuth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
