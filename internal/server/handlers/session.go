// internal/server/handlers/session.go

package handlers

import (
	"context"
	"net/http"

	"influence-dashboard/internal/session"
)

// SessionHeader carries the session id in both directions.
const SessionHeader = "X-Session-ID"

type sessionKey struct{}

// SessionMiddleware resolves the caller's session id, issuing a new one when
// the header is missing or malformed, and echoes it on the response.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if !session.ValidID(id) {
			id = session.NewID()
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

// SessionID returns the id SessionMiddleware stored in ctx.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
