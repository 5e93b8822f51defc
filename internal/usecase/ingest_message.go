package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
)

// IngestOutcome é o desfecho de uma entrega de webhook já autenticada.
type IngestOutcome struct {
	Skipped bool
	Reason  string
	Result  *entity.IngestResult
}

// IngestMessageUseCase é o pipeline de ingestão: normaliza o payload,
// roda o upsert transacional e audita o desfecho. A auditoria e o
// alerta são fire-and-forget e nunca afetam a resposta.
type IngestMessageUseCase struct {
	Store  entity.LeadStoreInterface
	Audit  queue.AuditPublisherInterface
	Alerts AlertSender
}

func NewIngestMessageUseCase(
	store entity.LeadStoreInterface,
	audit queue.AuditPublisherInterface,
	alerts AlertSender,
) *IngestMessageUseCase {
	return &IngestMessageUseCase{
		Store:  store,
		Audit:  audit,
		Alerts: alerts,
	}
}

func (uc *IngestMessageUseCase) Execute(ctx context.Context, raw []byte) (*IngestOutcome, error) {
	msg, skip := NormalizeEvent(raw)
	if skip != "" {
		uc.audit(queue.AuditRecord{Kind: queue.AuditWebhookSkipped, Reason: skip})
		return &IngestOutcome{Skipped: true, Reason: skip}, nil
	}

	res, err := uc.Store.UpsertInbound(ctx, msg)
	if err != nil {
		if errors.Is(err, entity.ErrNoAgentForSession) {
			log.Printf("⚠️ ingest: sessão %q sem vendedor — mensagem %s descartada", msg.Session, msg.MessageID)
			uc.audit(queue.AuditRecord{
				Kind:      queue.AuditResolutionFailure,
				MessageID: msg.MessageID,
				Session:   msg.Session,
				ChatID:    msg.ChatID,
				Reason:    err.Error(),
			})
			if uc.Alerts != nil {
				uc.Alerts.NotifyNoAgent(msg.Session, msg.ChatID)
			}
			return nil, &DomainError{Code: CodeResolutionFailure, Message: "no agent for session", Err: err}
		}

		uc.audit(queue.AuditRecord{
			Kind:      queue.AuditIngestFailed,
			MessageID: msg.MessageID,
			Session:   msg.Session,
			ChatID:    msg.ChatID,
			Reason:    err.Error(),
		})
		return nil, &TechnicalError{Code: CodeTransientStore, Message: "falha ao gravar ingestão", Err: err}
	}

	kind := queue.AuditMessageIngested
	if res.Duplicate {
		// Entrega repetida: no-op de sucesso, mas fica no trilho de auditoria.
		kind = queue.AuditDuplicateDelivery
	}
	uc.audit(queue.AuditRecord{
		Kind:      kind,
		LeadID:    res.LeadID,
		MessageID: msg.MessageID,
		Session:   msg.Session,
		ChatID:    msg.ChatID,
	})

	return &IngestOutcome{Result: res}, nil
}

func (uc *IngestMessageUseCase) audit(rec queue.AuditRecord) {
	if uc.Audit == nil {
		return
	}
	rec.ID = uuid.New().String()
	rec.At = time.Now().UTC()
	uc.Audit.Publish(rec)
}
