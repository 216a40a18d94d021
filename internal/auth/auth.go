// Package auth resolves the owner identity of incoming requests.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/blancocp/notex/internal/config"
)

// Mode selects how request owners are resolved.
type Mode string

const (
	// ModeEnforced requires a valid bearer token on every request.
	ModeEnforced Mode = "enforced"
	// ModeDisabled attributes every request to a fixed owner id.
	ModeDisabled Mode = "disabled"
)

type contextKey struct{}

// Provider verifies request identities and mints development tokens.
type Provider struct {
	mode       Mode
	fixedOwner string
	jwtSecret  []byte
	tokenTTL   time.Duration
}

// NewProvider builds a Provider from the auth config section.
func NewProvider(cfg config.AuthConfig) (*Provider, error) {
	mode := Mode(cfg.Mode)
	switch mode {
	case ModeEnforced:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("auth mode %q requires a JWT secret", cfg.Mode)
		}
	case ModeDisabled:
		if _, err := uuid.Parse(cfg.FixedOwnerID); err != nil {
			return nil, fmt.Errorf("invalid fixed owner id %q: %w", cfg.FixedOwnerID, err)
		}
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}

	return &Provider{
		mode:       mode,
		fixedOwner: cfg.FixedOwnerID,
		jwtSecret:  []byte(cfg.JWTSecret),
		tokenTTL:   time.Duration(cfg.TokenTTLMinutes) * time.Minute,
	}, nil
}

// Mode returns the configured auth mode.
func (p *Provider) Mode() Mode {
	return p.mode
}

// Middleware resolves the request owner and stores it on the context.
// Requests without a valid identity are rejected with 401.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.mode == ModeDisabled {
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), p.fixedOwner)))
			return
		}

		tokenString := bearerToken(r)
		if tokenString == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
			}
			return p.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := uuid.Parse(claims.Subject); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
	})
}

// IssueToken mints a signed token whose subject is the given user id.
func (p *Provider) IssueToken(userID string) (string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	if len(p.jwtSecret) == 0 {
		return "", fmt.Errorf("no JWT secret configured")
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("token.SignedString() > %w", err)
	}
	return signed, nil
}

// WithUserID returns a context carrying the owner identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the owner identity stored on the context, if any.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}
