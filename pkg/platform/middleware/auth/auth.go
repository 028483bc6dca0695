// Package auth resolves the caller's identity from a bearer token. The
// interception pipeline treats authentication as an external collaborator:
// Populate never rejects, it only makes the identity available to the audit
// and activity stages. Require is for business routes that demand a caller.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"sentra/pkg/requestcontext"
)

// Claims is what the pipeline needs from a validated token.
type Claims struct {
	UserID  string
	IsAdmin bool
}

// TokenValidator validates a raw bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// HMACValidator validates HS256-signed tokens with a shared key.
type HMACValidator struct {
	key []byte
}

func NewHMACValidator(key []byte) *HMACValidator {
	return &HMACValidator{key: key}
}

func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("token missing sub claim")
	}
	role, _ := claims["role"].(string)

	return &Claims{UserID: sub, IsAdmin: role == "admin"}, nil
}

// Populate resolves the bearer token into a request identity when one is
// present and valid. Missing or invalid tokens leave the request
// unauthenticated; rejection is the business route's concern, not the
// pipeline's.
func Populate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "bearer token rejected",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx := requestcontext.WithIdentity(r.Context(), &requestcontext.Identity{
				UserID:  claims.UserID,
				IsAdmin: claims.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require rejects requests that did not resolve to an identity.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestcontext.GetIdentity(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose identity is not an administrator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestcontext.GetIdentity(r.Context())
		if id == nil || !id.IsAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"administrator access required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
