package entity

import (
	"context"
	"time"
)

const (
	RoleSales    = "SALES"
	RoleTeamLead = "TEAM_LEAD"
	RoleAdmin    = "ADMIN"
)

// Entidade: Agent (vendedor). Um agente SALES tem no máximo uma
// sessão WAHA atribuída; é por ela que o resolver encontra o dono
// de um lead novo.
type Agent struct {
	UID         string    `json:"uid"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	TeamID      string    `json:"team_id"`
	WahaSession string    `json:"waha_session,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CanActOn diz se o agente pode operar sobre o lead: dono direto,
// líder do time do lead, ou admin.
func (a *Agent) CanActOn(lead *Lead) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleTeamLead:
		return a.TeamID != "" && a.TeamID == lead.TeamID
	default:
		return a.UID == lead.OwnerUID
	}
}

type AgentRepositoryInterface interface {
	FindByToken(ctx context.Context, token string) (*Agent, error)
	FindByUID(ctx context.Context, uid string) (*Agent, error)
}
