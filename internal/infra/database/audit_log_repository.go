package database

import (
	"context"
	"database/sql"

	"github.com/xavierca1/ligue-crm/internal/infra/queue"
)

// AuditLogRepository grava registros consumidos da fila de auditoria.
// Tabela append-only: nada de UPDATE/DELETE aqui.
type AuditLogRepository struct {
	DB *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{DB: db}
}

func (r *AuditLogRepository) Append(ctx context.Context, rec queue.AuditRecord) error {
	// ON CONFLICT DO NOTHING: redelivery da fila não duplica o registro.
	query := `
		INSERT INTO audit_logs (
			id, kind, lead_id, message_id, session, chat_id, actor_uid, reason, at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, query,
		rec.ID, rec.Kind,
		nullString(rec.LeadID), nullString(rec.MessageID),
		nullString(rec.Session), nullString(rec.ChatID),
		nullString(rec.ActorUID), nullString(rec.Reason),
		rec.At,
	)
	return err
}
