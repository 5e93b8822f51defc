package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// LeadRepository é o lado de leitura do agregado. Escritas passam pelo
// LeadStore; aqui só tem consulta e o mark-read.
type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

const leadColumns = `
	id, chat_id, session, owner_uid, team_id, source,
	customer_name, phone, stage,
	last_message_at, last_message_preview, unread_count,
	created_at, updated_at
`

func (r *LeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)

	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListForAgent devolve os leads visíveis para o agente: admin vê tudo,
// líder vê o time, vendedor vê os próprios.
func (r *LeadRepository) ListForAgent(ctx context.Context, agent *entity.Agent, limit, offset int) ([]*entity.Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		rows *sql.Rows
		err  error
	)
	order := ` ORDER BY last_message_at DESC LIMIT $2 OFFSET $3`

	switch agent.Role {
	case entity.RoleAdmin:
		rows, err = r.DB.QueryContext(ctx,
			`SELECT `+leadColumns+` FROM leads ORDER BY last_message_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	case entity.RoleTeamLead:
		rows, err = r.DB.QueryContext(ctx,
			`SELECT `+leadColumns+` FROM leads WHERE team_id = $1`+order,
			agent.TeamID, limit, offset)
	default:
		rows, err = r.DB.QueryContext(ctx,
			`SELECT `+leadColumns+` FROM leads WHERE owner_uid = $1`+order,
			agent.UID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*entity.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) ListMessages(ctx context.Context, leadID string, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, lead_id, direction, text, session, event_at,
		       status, COALESCE(actor_uid, ''), raw, created_at
		FROM messages
		WHERE lead_id = $1
		ORDER BY event_at DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*entity.Message
	for rows.Next() {
		var (
			m   entity.Message
			raw []byte
		)
		err := rows.Scan(
			&m.ID, &m.LeadID, &m.Direction, &m.Text, &m.Session, &m.Timestamp,
			&m.Status, &m.ActorUID, &raw, &m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		m.Raw = json.RawMessage(raw)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// MarkRead zera o contador de não lidas (o vendedor abriu a conversa).
func (r *LeadRepository) MarkRead(ctx context.Context, leadID string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE leads SET unread_count = 0, updated_at = NOW() WHERE id = $1`,
		leadID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrLeadNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*entity.Lead, error) {
	var l entity.Lead
	err := row.Scan(
		&l.ID, &l.ChatID, &l.Session, &l.OwnerUID, &l.TeamID, &l.Source,
		&l.CustomerName, &l.Phone, &l.Stage,
		&l.LastMessageAt, &l.LastMessagePreview, &l.UnreadCount,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
