package middleware

import (
	"context"
	"net/http"

	"pokeproxy/pkg/logging/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CorrelationHeader = "X-Correlation-ID"
	SessionHeader     = "X-Session-ID"
	CorrelationCookie = "correlation-id"

	correlationCookieMaxAge = 24 * 60 * 60
)

type correlationKey struct{}

// CorrelationID returns the id attached by Correlation, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Correlation resolves a per-client id from the X-Session-ID header, then the
// correlation-id cookie, else a fresh UUID. The id is echoed as a response
// header and a strict 24h cookie and added to the request logger. secure marks
// the cookie HTTPS-only.
func Correlation(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				if c, err := r.Cookie(CorrelationCookie); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(CorrelationHeader, id)
			http.SetCookie(w, &http.Cookie{
				Name:     CorrelationCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   correlationCookieMaxAge,
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteStrictMode,
			})

			ctx := context.WithValue(r.Context(), correlationKey{}, id)
			ctx = logging.WithFields(ctx, zap.String("correlation_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
