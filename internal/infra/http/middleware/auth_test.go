package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type stubAgentRepo struct {
	byToken map[string]*entity.Agent
}

func (s *stubAgentRepo) FindByToken(_ context.Context, token string) (*entity.Agent, error) {
	if a, ok := s.byToken[token]; ok {
		return a, nil
	}
	return nil, entity.ErrAgentNotFound
}

func (s *stubAgentRepo) FindByUID(_ context.Context, _ string) (*entity.Agent, error) {
	return nil, entity.ErrAgentNotFound
}

func authFixture() (*AgentAuth, *entity.Agent) {
	agent := &entity.Agent{UID: "agent-1", Role: entity.RoleSales, Active: true}
	repo := &stubAgentRepo{byToken: map[string]*entity.Agent{"tok-valid": agent}}
	return NewAgentAuth(repo), agent
}

func TestRequireAgent_ValidToken(t *testing.T) {
	auth, want := authFixture()

	var got *entity.Agent
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = AgentFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/leads", nil)
	req.Header.Set("Authorization", "Bearer tok-valid")
	rr := httptest.NewRecorder()

	auth.RequireAgent(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, want.UID, got.UID)
}

func TestRequireAgent_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"sem header", ""},
		{"token desconhecido", "Bearer tok-nope"},
		{"sem prefixo Bearer", "tok-valid"},
		{"esquema errado", "Basic tok-valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, _ := authFixture()

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest(http.MethodGet, "/leads", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			auth.RequireAgent(next).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
			assert.False(t, called)
		})
	}
}

func TestAgentFrom_EmptyContext(t *testing.T) {
	assert.Nil(t, AgentFrom(context.Background()))
}
