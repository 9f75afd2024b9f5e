package web

import (
	"net"
	"net/http"

	"github.com/JonMunkholm/validata/internal/auth"
	"github.com/JonMunkholm/validata/internal/core"
)

// withRequestMetadata copies the caller's IP, User-Agent and verified
// identity into the context for project metadata and ingestion history.
func withRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), clientIP(r))
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
		if claims, ok := auth.GetClaims(ctx); ok {
			ctx = core.ContextWithActor(ctx, claims.Actor())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP strips the port from RemoteAddr, already rewritten by
// TrustedRealIP when the request came through a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
