package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStaticTokens(t *testing.T) {
	v, err := ParseStaticTokens("alpha=admin|kitchen, beta=counter")
	require.NoError(t, err)

	claims, err := v.Verify(t.Context(), "alpha")
	require.NoError(t, err)
	assert.True(t, claims.HasAny(RoleAdmin))
	assert.True(t, claims.HasAny(RoleKitchen))
	assert.False(t, claims.HasAny(RoleCounter))

	claims, err = v.Verify(t.Context(), "beta")
	require.NoError(t, err)
	assert.True(t, claims.HasAny(RoleCounter))

	_, err = v.Verify(t.Context(), "gamma")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseStaticTokens_Rejects(t *testing.T) {
	_, err := ParseStaticTokens("alpha=superuser")
	assert.Error(t, err)

	_, err = ParseStaticTokens("noequals")
	assert.Error(t, err)

	v, err := ParseStaticTokens("")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestGuard_Require(t *testing.T) {
	v := StaticVerifier{
		"staff": {Subject: "staff:1", Roles: map[Role]bool{RoleKitchen: true}},
	}
	guard := NewGuard(v)

	var gotSubject string
	h := guard.Require(RoleKitchen, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		require.True(t, ok)
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"good token", "Bearer staff", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "staff:1", gotSubject)
}

func TestGuard_RequireRoleMismatch(t *testing.T) {
	v := StaticVerifier{
		"staff": {Subject: "staff:1", Roles: map[Role]bool{RoleCounter: true}},
	}
	h := NewGuard(v).Require(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer staff")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
