package worker

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// ReminderSender notifica a operação. Fire-and-forget.
type ReminderSender interface {
	NotifyUnansweredLeads(count int, window time.Duration)
}

// UnansweredLeadsWorker varre leads com mensagens não lidas paradas há
// mais que a janela e avisa a operação. Não altera nenhum lead.
type UnansweredLeadsWorker struct {
	db           *sql.DB
	alerts       ReminderSender
	window       time.Duration
	tickInterval time.Duration

	lastCount int
}

func NewUnansweredLeadsWorker(db *sql.DB, alerts ReminderSender) *UnansweredLeadsWorker {
	return &UnansweredLeadsWorker{
		db:           db,
		alerts:       alerts,
		window:       30 * time.Minute,
		tickInterval: 10 * time.Minute,
	}
}

func (w *UnansweredLeadsWorker) Start(ctx context.Context) {
	log.Println("🕒 Unanswered leads worker iniciado (janela de 30min)")

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.check(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Unanswered leads worker encerrado")
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *UnansweredLeadsWorker) check(ctx context.Context) {
	query := `
		SELECT COUNT(*)
		FROM leads
		WHERE unread_count > 0
		  AND last_message_at < NOW() - ($1 * INTERVAL '1 minute')
	`

	var count int
	err := w.db.QueryRowContext(ctx, query, int(w.window.Minutes())).Scan(&count)
	if err != nil {
		log.Printf("⚠️ unanswered worker: erro na consulta: %v", err)
		return
	}

	// Só notifica quando o número muda, para não virar spam de e-mail.
	if count > 0 && count != w.lastCount {
		log.Printf("⚠️ %d lead(s) sem resposta há mais de %s", count, w.window)
		if w.alerts != nil {
			w.alerts.NotifyUnansweredLeads(count, w.window)
		}
	}
	w.lastCount = count
}
