package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type AgentRepository struct {
	DB *sql.DB
}

func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{DB: db}
}

const agentColumns = `
	uid, name, email, role, team_id, COALESCE(waha_session, ''), active, created_at
`

// FindByToken autentica um bearer token da API. Só agentes ativos.
func (r *AgentRepository) FindByToken(ctx context.Context, token string) (*entity.Agent, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM users WHERE api_token = $1 AND active`, token)
	return scanAgent(row)
}

func (r *AgentRepository) FindByUID(ctx context.Context, uid string) (*entity.Agent, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM users WHERE uid = $1`, uid)
	return scanAgent(row)
}

func scanAgent(row *sql.Row) (*entity.Agent, error) {
	var a entity.Agent
	err := row.Scan(
		&a.UID, &a.Name, &a.Email, &a.Role, &a.TeamID, &a.WahaSession, &a.Active, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
