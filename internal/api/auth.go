package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/findez/inventory/internal/log"
)

type identityKey struct{}

var ctxKeyIdentity = identityKey{}

// Identity is the authenticated caller extracted from the bearer token.
// DisplayName is optional; a token without a name claim still authenticates.
type Identity struct {
	UserID      string
	DisplayName string
}

// identityFromContext retrieves the authenticated identity.
// Returns false when the request did not pass authMiddleware.
func identityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

// authClaims is the expected token payload. The subject carries the user ID
// and the name claim carries the optional display name.
type authClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// authMiddleware verifies the Authorization bearer token (HS256) and injects
// the caller identity into the request context. Requests without a valid
// token are rejected with 401.
func authMiddleware(secret []byte, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims := &authClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				logger.Warn("token verification failed",
					"error", err,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			if claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "token has no subject")
				return
			}

			identity := Identity{
				UserID:      claims.Subject,
				DisplayName: strings.TrimSpace(claims.Name),
			}
			ctx := context.WithValue(r.Context(), ctxKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
