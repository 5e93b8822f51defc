package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

const (
	maxTxAttempts = 5
	baseBackoff   = 25 * time.Millisecond
)

// LeadStore é o motor transacional do agregado lead+mensagens.
// Tudo roda em transação SERIALIZABLE: criar/atualizar o lead e gravar
// a mensagem commitam juntos ou não commitam. A deduplicação é por
// (lead, message id) — entrega repetida vira no-op de sucesso.
type LeadStore struct {
	DB *sql.DB
}

func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{DB: db}
}

func (s *LeadStore) UpsertInbound(ctx context.Context, msg *entity.InboundMessage) (*entity.IngestResult, error) {
	var res *entity.IngestResult
	err := withBackoff(ctx, func() error {
		return s.runTx(ctx, func(tx *sql.Tx) error {
			r, err := s.ingestTx(ctx, tx, msg, time.Now().UTC())
			if err != nil {
				return err
			}
			res = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RecordOutbound grava uma mensagem enviada e atualiza o preview do
// lead. Nunca mexe em unread_count. Idempotente pelo ID da mensagem.
func (s *LeadStore) RecordOutbound(ctx context.Context, leadID string, m *entity.Message) error {
	return withBackoff(ctx, func() error {
		return s.runTx(ctx, func(tx *sql.Tx) error {
			lead, err := lockLead(ctx, tx, leadID)
			if err != nil {
				return err
			}
			if lead == nil {
				return entity.ErrLeadNotFound
			}

			exists, err := messageExists(ctx, tx, leadID, m.ID)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}

			mm := *m
			mm.LeadID = leadID
			if err := insertMessage(ctx, tx, &mm); err != nil {
				return err
			}

			now := time.Now().UTC()
			if !mm.Timestamp.Before(lead.LastMessageAt) {
				_, err = tx.ExecContext(ctx, `
					UPDATE leads
					SET last_message_at = $2, last_message_preview = $3, updated_at = $4
					WHERE id = $1
				`, leadID, mm.Timestamp, entity.TruncatePreview(mm.Text), now)
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE leads SET updated_at = $2 WHERE id = $1`, leadID, now)
			}
			return err
		})
	})
}

// ingestTx é o read-modify-write de uma mensagem inbound. Roda inteiro
// dentro da transação: o lookup feito antes de entrar aqui seria só
// dica — a leitura autoritativa é o SELECT FOR UPDATE abaixo.
func (s *LeadStore) ingestTx(ctx context.Context, tx *sql.Tx, msg *entity.InboundMessage, now time.Time) (*entity.IngestResult, error) {
	leadID := entity.LeadKey(msg.ChatID, msg.Session)

	lead, err := lockLead(ctx, tx, leadID)
	if err != nil {
		return nil, err
	}

	exists, err := messageExists(ctx, tx, leadID, msg.MessageID)
	if err != nil {
		return nil, err
	}
	if exists {
		// Entrega duplicada: efeito exatamente-uma-vez, para qualquer N>=1.
		return &entity.IngestResult{LeadID: leadID, Duplicate: true}, nil
	}

	var agent *entity.Agent
	if lead == nil {
		agent, err = resolveAgent(ctx, tx, msg.Session)
		if err != nil {
			// Sem vendedor na sessão: aborta antes de qualquer escrita.
			return nil, err
		}
	}

	next, m := applyInbound(lead, agent, msg, now)

	if lead == nil {
		if err := insertLead(ctx, tx, next); err != nil {
			return nil, err
		}
	} else {
		if err := updateLead(ctx, tx, next); err != nil {
			return nil, err
		}
	}

	if err := insertMessage(ctx, tx, m); err != nil {
		return nil, err
	}

	return &entity.IngestResult{LeadID: leadID, LeadCreated: lead == nil}, nil
}

// applyInbound calcula o próximo estado do agregado. Função pura — toda
// a regra de criar/atualizar mora aqui; o SQL em volta só materializa.
// lead == nil exige agent != nil (resolvido pelo chamador).
func applyInbound(lead *entity.Lead, agent *entity.Agent, msg *entity.InboundMessage, now time.Time) (*entity.Lead, *entity.Message) {
	var next entity.Lead
	if lead == nil {
		name := msg.NotifyName
		if name == "" {
			name = entity.PhoneFromChatID(msg.ChatID)
		}
		next = entity.Lead{
			ID:                 entity.LeadKey(msg.ChatID, msg.Session),
			ChatID:             msg.ChatID,
			Session:            msg.Session,
			OwnerUID:           agent.UID,
			TeamID:             agent.TeamID,
			Source:             entity.SourceWhatsApp,
			CustomerName:       name,
			Phone:              entity.PhoneFromChatID(msg.ChatID),
			Stage:              entity.StageNew,
			LastMessageAt:      msg.Timestamp,
			LastMessagePreview: entity.TruncatePreview(msg.Body),
			UnreadCount:        1,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
	} else {
		next = *lead
		next.UnreadCount++
		next.UpdatedAt = now
		// Guarda de monotonicidade: evento atrasado (timestamp mais antigo
		// que o último registrado) entra no histórico e conta como não
		// lida, mas não regride o preview da conversa.
		if !msg.Timestamp.Before(lead.LastMessageAt) {
			next.LastMessageAt = msg.Timestamp
			next.LastMessagePreview = entity.TruncatePreview(msg.Body)
		}
	}

	m := &entity.Message{
		ID:        msg.MessageID,
		LeadID:    next.ID,
		Direction: entity.DirectionIn,
		Text:      msg.Body,
		Session:   msg.Session,
		Timestamp: msg.Timestamp,
		Status:    entity.StatusDelivered,
		Raw:       msg.Raw,
		CreatedAt: now,
	}
	return &next, m
}

// runTx executa fn numa transação SERIALIZABLE.
func (s *LeadStore) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// withBackoff re-executa fn em falha de serialização, com backoff
// exponencial + jitter. O Postgres não re-tenta transações serializable
// sozinho; o retry do read-modify-write inteiro é responsabilidade nossa.
func withBackoff(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}
		if serr := sleepBackoff(ctx, attempt); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("transação abortada após %d tentativas: %w", maxTxAttempts, err)
}

// isRetryable: 40001 serialization_failure, 40P01 deadlock_detected.
// 23505 (unique_violation) também re-tenta: duas entregas do mesmo
// evento correndo — a repetição enxerga a mensagem já gravada e vira
// no-op de duplicata.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "23505":
			return true
		}
	}
	return false
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := baseBackoff * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(backoff)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff + jitter):
		return nil
	}
}

func lockLead(ctx context.Context, tx *sql.Tx, id string) (*entity.Lead, error) {
	query := `
		SELECT id, chat_id, session, owner_uid, team_id, source,
		       customer_name, phone, stage,
		       last_message_at, last_message_preview, unread_count,
		       created_at, updated_at
		FROM leads
		WHERE id = $1
		FOR UPDATE
	`

	var l entity.Lead
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.ChatID, &l.Session, &l.OwnerUID, &l.TeamID, &l.Source,
		&l.CustomerName, &l.Phone, &l.Stage,
		&l.LastMessageAt, &l.LastMessagePreview, &l.UnreadCount,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func messageExists(ctx context.Context, tx *sql.Tx, leadID, messageID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM messages WHERE lead_id = $1 AND id = $2`,
		leadID, messageID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// resolveAgent encontra o vendedor dono da sessão. Dois vendedores na
// mesma sessão não é erro (o modelo não impõe unicidade); o desempate
// é determinístico por uid.
func resolveAgent(ctx context.Context, tx *sql.Tx, session string) (*entity.Agent, error) {
	query := `
		SELECT uid, name, email, role, team_id, COALESCE(waha_session, ''), active, created_at
		FROM users
		WHERE role = $1 AND active AND waha_session = $2
		ORDER BY uid
		LIMIT 1
	`

	var a entity.Agent
	err := tx.QueryRowContext(ctx, query, entity.RoleSales, session).Scan(
		&a.UID, &a.Name, &a.Email, &a.Role, &a.TeamID, &a.WahaSession, &a.Active, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNoAgentForSession
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func insertLead(ctx context.Context, tx *sql.Tx, l *entity.Lead) error {
	query := `
		INSERT INTO leads (
			id, chat_id, session, owner_uid, team_id, source,
			customer_name, phone, stage,
			last_message_at, last_message_preview, unread_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := tx.ExecContext(ctx, query,
		l.ID, l.ChatID, l.Session, l.OwnerUID, l.TeamID, l.Source,
		l.CustomerName, l.Phone, l.Stage,
		l.LastMessageAt, l.LastMessagePreview, l.UnreadCount,
		l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func updateLead(ctx context.Context, tx *sql.Tx, l *entity.Lead) error {
	// owner_uid/team_id/stage de lead existente nunca são tocados aqui.
	query := `
		UPDATE leads
		SET last_message_at = $2,
		    last_message_preview = $3,
		    unread_count = $4,
		    updated_at = $5
		WHERE id = $1
	`
	_, err := tx.ExecContext(ctx, query,
		l.ID, l.LastMessageAt, l.LastMessagePreview, l.UnreadCount, l.UpdatedAt,
	)
	return err
}

func insertMessage(ctx context.Context, tx *sql.Tx, m *entity.Message) error {
	query := `
		INSERT INTO messages (
			id, lead_id, direction, text, session, event_at,
			status, actor_uid, raw, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.ExecContext(ctx, query,
		m.ID, m.LeadID, m.Direction, m.Text, m.Session, m.Timestamp,
		m.Status, nullString(m.ActorUID), []byte(m.Raw), m.CreatedAt,
	)
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
