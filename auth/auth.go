// Package auth verifies bearer tokens issued by the identity provider.
// There is no local registration or login: users authenticate against
// the provider (Supabase), and this backend only checks the HS256
// signature of the JWT it minted and extracts the user identity.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Olegcreabuilder/createshorts-backend/httputil"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// UserIDKey is the context key used to store the authenticated user ID.
const UserIDKey contextKey = "user_id"

// UserID returns the authenticated user ID from the request context.
func UserID(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(UserIDKey).(string)
	return uid, ok && uid != ""
}

// Verifier validates provider-issued JWTs.
type Verifier struct {
	Secret string
}

// VerifyToken parses and validates a raw JWT, returning the subject
// (the provider's user id).
func (v *Verifier) VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(v.Secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// ExtractUserID resolves the Bearer token on a request to a user ID,
// or "" when the request carries no valid credential.
func (v *Verifier) ExtractUserID(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	uid, err := v.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return ""
	}
	return uid
}

// Middleware requires a valid provider JWT and puts the user ID into
// the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := v.ExtractUserID(r)
		if userID == "" {
			httputil.WriteJSON(w, 401, map[string]string{"error": "non authentifié"})
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
