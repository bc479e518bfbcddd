package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/handlers/render"
	"github.com/samkok24/char-chat-project-sub001/internal/handlers/userctx"
)

type tokenParser interface {
	ParseUserID(tokenString string) (uuid.UUID, error)
}

// AuthMiddleware authenticates requests with a bearer service token and
// puts the user id on the request context.
func AuthMiddleware(parser tokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := parser.ParseUserID(token)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
