package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blancocp/notex/internal/config"
	"github.com/blancocp/notex/internal/testutil"
)

const (
	fixedOwner = "00000000-0000-0000-0000-000000000000"
	someUser   = "11111111-1111-1111-1111-111111111111"
)

func enforcedProvider(t *testing.T) *Provider {
	t.Helper()
	provider, err := NewProvider(config.AuthConfig{
		Mode:            "enforced",
		JWTSecret:       testutil.TestJWTSecret,
		TokenTTLMinutes: 60,
	})
	require.NoError(t, err)
	return provider
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AuthConfig
		wantErr string
	}{
		{
			name: "disabled mode with fixed owner",
			cfg:  config.AuthConfig{Mode: "disabled", FixedOwnerID: fixedOwner},
		},
		{
			name: "enforced mode with secret",
			cfg:  config.AuthConfig{Mode: "enforced", JWTSecret: "secret", TokenTTLMinutes: 60},
		},
		{
			name:    "enforced mode without secret",
			cfg:     config.AuthConfig{Mode: "enforced"},
			wantErr: "requires a JWT secret",
		},
		{
			name:    "disabled mode with malformed owner id",
			cfg:     config.AuthConfig{Mode: "disabled", FixedOwnerID: "not-a-uuid"},
			wantErr: "invalid fixed owner id",
		},
		{
			name:    "unknown mode",
			cfg:     config.AuthConfig{Mode: "anonymous"},
			wantErr: "unknown auth mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewProvider(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Mode(tt.cfg.Mode), got.Mode())
		})
	}
}

func TestProvider_Middleware(t *testing.T) {
	nextHandler := func(gotUserID *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserID(r.Context())
			require.True(t, ok)
			*gotUserID = userID
			w.WriteHeader(http.StatusNoContent)
		})
	}

	t.Run("disabled mode attributes every request to the fixed owner", func(t *testing.T) {
		provider, err := NewProvider(config.AuthConfig{Mode: "disabled", FixedOwnerID: fixedOwner})
		require.NoError(t, err)

		var gotUserID string
		recorder := httptest.NewRecorder()
		provider.Middleware(nextHandler(&gotUserID)).
			ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/notes", nil))

		assert.Equal(t, http.StatusNoContent, recorder.Code)
		assert.Equal(t, fixedOwner, gotUserID)
	})

	t.Run("valid bearer token resolves the subject", func(t *testing.T) {
		provider := enforcedProvider(t)
		token, err := provider.IssueToken(someUser)
		require.NoError(t, err)

		var gotUserID string
		request := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		request.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()
		provider.Middleware(nextHandler(&gotUserID)).ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusNoContent, recorder.Code)
		assert.Equal(t, someUser, gotUserID)
	})

	t.Run("token from the auth cookie is accepted", func(t *testing.T) {
		provider := enforcedProvider(t)
		token, err := provider.IssueToken(someUser)
		require.NoError(t, err)

		var gotUserID string
		request := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		request.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
		recorder := httptest.NewRecorder()
		provider.Middleware(nextHandler(&gotUserID)).ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusNoContent, recorder.Code)
		assert.Equal(t, someUser, gotUserID)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		provider := enforcedProvider(t)

		recorder := httptest.NewRecorder()
		provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler must not be called")
		})).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/notes", nil))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		provider := enforcedProvider(t)
		otherProvider, err := NewProvider(config.AuthConfig{
			Mode:            "enforced",
			JWTSecret:       "another-secret",
			TokenTTLMinutes: 60,
		})
		require.NoError(t, err)
		token, err := otherProvider.IssueToken(someUser)
		require.NoError(t, err)

		request := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		request.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()
		provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler must not be called")
		})).ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		provider := enforcedProvider(t)
		claims := &jwt.RegisteredClaims{
			Subject:   someUser,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
			SignedString([]byte(testutil.TestJWTSecret))
		require.NoError(t, err)

		request := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		request.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()
		provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler must not be called")
		})).ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("token without a uuid subject is rejected", func(t *testing.T) {
		provider := enforcedProvider(t)
		claims := &jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
			SignedString([]byte(testutil.TestJWTSecret))
		require.NoError(t, err)

		request := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		request.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()
		provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler must not be called")
		})).ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestProvider_IssueToken(t *testing.T) {
	t.Run("rejects a malformed user id", func(t *testing.T) {
		provider := enforcedProvider(t)
		_, err := provider.IssueToken("not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("issued token carries the subject and expiry", func(t *testing.T) {
		provider := enforcedProvider(t)
		token, err := provider.IssueToken(someUser)
		require.NoError(t, err)

		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (any, error) {
			return []byte(testutil.TestJWTSecret), nil
		})
		require.NoError(t, err)
		assert.True(t, parsed.Valid)
		assert.Equal(t, someUser, claims.Subject)
		require.NotNil(t, claims.ExpiresAt)
		assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
	})
}

func TestUserID(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ctx := WithUserID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), someUser)
		got, ok := UserID(ctx)
		assert.True(t, ok)
		assert.Equal(t, someUser, got)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := UserID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
		assert.False(t, ok)
	})
}
