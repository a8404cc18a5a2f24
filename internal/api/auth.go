package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"brewbook/internal/config"
)

type contextKey string

const authorKey contextKey = "author_id"

// authenticator verifies HS256 bearer tokens. With no secret every request
// passes anonymously.
type authenticator struct {
	secret []byte
	issuer string
}

func newAuthenticator(cfg config.AuthConfig) *authenticator {
	return &authenticator{
		secret: []byte(strings.TrimSpace(cfg.JWTSecret)),
		issuer: strings.TrimSpace(cfg.Issuer),
	}
}

func (a *authenticator) enabled() bool {
	return len(a.secret) > 0
}

func (a *authenticator) middleware(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
			return
		}
		subject, err := a.verify(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), authorKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verify returns the token subject.
func (a *authenticator) verify(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: token not valid", errUnauthorized)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: token has no subject", errUnauthorized)
	}
	return claims.Subject, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthorID returns the authenticated subject, or "" for anonymous requests.
func AuthorID(ctx context.Context) string {
	id, _ := ctx.Value(authorKey).(string)
	return id
}

// requireOwner rejects changes to a recipe authored by someone else.
// Recipes without an author, and anonymous development mode, are open.
func requireOwner(ctx context.Context, recipeAuthor string) error {
	caller := AuthorID(ctx)
	if caller == "" || recipeAuthor == "" || caller == recipeAuthor {
		return nil
	}
	return errors.Join(errForbidden, fmt.Errorf("recipe belongs to another author"))
}
