package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ctxKey string

const ctxKeyOwner ctxKey = "owner"

func parseBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "Bearer ") && !strings.HasPrefix(h, "bearer ") {
		return "", false
	}
	return strings.TrimSpace(h[len("Bearer "):]), true
}

// parseOwnerToken verifies an HS256 token and returns its subject as the owner id.
func (s *Server) parseOwnerToken(raw string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
	}
	if s.auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.auth.Issuer))
	}
	if s.auth.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.auth.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.auth.Secret), nil
	}, opts...)
	if err != nil {
		return uuid.Nil, err
	}
	if !tok.Valid {
		return uuid.Nil, errors.New("invalid token")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(sub)
}

// authenticate enforces Authorization: Bearer JWT when a secret is configured
// and stores the subject as the request owner.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth.Secret == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := parseBearerToken(r)
		if !ok {
			writeErr(w, http.StatusUnauthorized, "missing bearer token", "unauthorized")
			return
		}
		owner, err := s.parseOwnerToken(raw)
		if err != nil {
			s.log.Debug("token rejected", "err", err)
			writeErr(w, http.StatusUnauthorized, "invalid token", "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyOwner, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ownerID resolves the caller: the token subject when auth is on, else the
// user_id query parameter. It writes the error response itself.
func (s *Server) ownerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if owner, ok := r.Context().Value(ctxKeyOwner).(uuid.UUID); ok {
		return owner, true
	}
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		badRequest(w, "user_id is required")
		return uuid.Nil, false
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid user_id")
		return uuid.Nil, false
	}
	return owner, true
}
