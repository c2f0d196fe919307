package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// SessionCookieName — cookie с идентификатором сессии. Cookie без Expires
// живёт, пока открыт браузер.
const SessionCookieName = "session_id"

type sessionKey struct{}

// SessionID возвращает идентификатор сессии, выставленный sessionMiddleware.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// sessionMiddleware гарантирует, что у запроса есть сессия; новая сессия
// получает случайный UUID.
func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookieName); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
