package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"quizmaster-service/internal/domain"
)

// TokenIssuer mints and verifies HS256 bearer tokens. Role travels in the
// claims, so authorization never re-reads the user row per request.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (t *TokenIssuer) Mint(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   time.Now().Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// identity is the authenticated caller, stored on the request context.
type identity struct {
	UserID int64
	Email  string
	Role   string
}

func (t *TokenIssuer) parse(tokenString string) (identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return identity{}, domain.ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return identity{}, domain.ErrUnauthorized
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return identity{}, domain.ErrUnauthorized
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return identity{UserID: int64(sub), Email: email, Role: role}, nil
}

type contextKey struct{}

var identityKey contextKey

func callerFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityKey).(identity)
	return id
}

// authed verifies the bearer token and stores the caller identity on the
// request context.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeMessage(w, http.StatusUnauthorized, "missing authorization token")
			return
		}
		caller, err := s.tokens.parse(raw)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, caller)))
	})
}

// admin is authed plus a role check.
func (s *Server) admin(next http.HandlerFunc) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		if callerFrom(r.Context()).Role != domain.RoleAdmin {
			writeMessage(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Websocket clients cannot set headers from the browser; accept the
	// token as a query parameter there.
	return r.URL.Query().Get("token")
}
