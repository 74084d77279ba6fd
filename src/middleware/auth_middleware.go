package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey     contextKey = "user_id"
	superAdminKey contextKey = "super_admin"
)

// Claims identify the caller. The subject is the opaque user id that owns expenses.
type Claims struct {
	SuperAdmin bool `json:"super_admin,omitempty"`
	jwt.RegisteredClaims
}

func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ParseTokenFromRequest extracts and validates the bearer token.
func ParseTokenFromRequest(r *http.Request, secret string) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errors.New("missing token")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errors.New("invalid authorization header")
	}
	return ParseToken(tokenString, secret)
}

// IssueToken mints an HS256 token for userID. A zero ttl gives a token without expiry.
func IssueToken(secret, userID string, superAdmin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SuperAdmin: superAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func JWTAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ParseTokenFromRequest(r, secret)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := WithUserID(r.Context(), claims.Subject, claims.SuperAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SuperAdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsSuperAdmin(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUserID(ctx context.Context, userID string, superAdmin bool) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, superAdminKey, superAdmin)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func IsSuperAdmin(ctx context.Context) bool {
	superAdmin, ok := ctx.Value(superAdminKey).(bool)
	return ok && superAdmin
}
