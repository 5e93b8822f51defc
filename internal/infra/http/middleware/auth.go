package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type contextKey string

const agentKey contextKey = "agent"

// AgentAuth autentica chamadas da API por bearer token de agente.
// Resposta de falha é sempre o mesmo 401 genérico.
type AgentAuth struct {
	Agents entity.AgentRepositoryInterface
}

func NewAgentAuth(agents entity.AgentRepositoryInterface) *AgentAuth {
	return &AgentAuth{Agents: agents}
}

func (a *AgentAuth) RequireAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			unauthorized(w)
			return
		}

		agent, err := a.Agents.FindByToken(r.Context(), token)
		if err != nil {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), agentKey, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AgentFrom recupera o agente autenticado do contexto. nil fora de
// rotas protegidas por RequireAgent.
func AgentFrom(ctx context.Context) *entity.Agent {
	agent, _ := ctx.Value(agentKey).(*entity.Agent)
	return agent
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
