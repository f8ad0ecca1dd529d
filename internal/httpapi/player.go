package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	PlayerCookie    = "chess_player"
	playerCookieAge = 365 * 24 * 60 * 60
)

type playerKey struct{}

func playerFrom(ctx context.Context) string {
	id, _ := ctx.Value(playerKey{}).(string)
	return id
}

// withPlayer identifies the browser by cookie, issuing a new id on first visit.
func (h *Handler) withPlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(PlayerCookie); err == nil {
			id = strings.TrimSpace(c.Value)
		}
		if err := uuid.Validate(id); err != nil {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     PlayerCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   playerCookieAge,
				HttpOnly: true,
				Secure:   h.secureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), playerKey{}, id)))
	})
}
