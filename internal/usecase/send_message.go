package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
)

type SendMessageInput struct {
	LeadID string `json:"lead_id" validate:"required"`
	Text   string `json:"text" validate:"required,max=4096"`
}

type SendMessageOutput struct {
	OK              bool            `json:"ok"`
	MessageID       string          `json:"message_id,omitempty"`
	GatewayStatus   int             `json:"gateway_status"`
	GatewayResponse json.RawMessage `json:"gateway_response,omitempty"`
}

// SendMessageUseCase envia texto pelo gateway e registra o desfecho no
// histórico do lead. Autorização (dono, líder do time ou admin) é
// verificada ANTES de falar com o gateway. Envio nunca mexe em unread.
type SendMessageUseCase struct {
	Leads   entity.LeadRepositoryInterface
	Store   entity.LeadStoreInterface
	Gateway WahaGateway
	Audit   queue.AuditPublisherInterface
}

func NewSendMessageUseCase(
	leads entity.LeadRepositoryInterface,
	store entity.LeadStoreInterface,
	gateway WahaGateway,
	audit queue.AuditPublisherInterface,
) *SendMessageUseCase {
	return &SendMessageUseCase{
		Leads:   leads,
		Store:   store,
		Gateway: gateway,
		Audit:   audit,
	}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, agent *entity.Agent, input SendMessageInput) (*SendMessageOutput, error) {
	lead, err := uc.Leads.FindByID(ctx, input.LeadID)
	if err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			return nil, &DomainError{Code: CodeLeadNotFound, Message: "lead não encontrado", Err: err}
		}
		return nil, &TechnicalError{Code: CodeTransientStore, Message: "falha ao buscar lead", Err: err}
	}

	if !agent.CanActOn(lead) {
		return nil, &DomainError{Code: CodeUnauthorized, Message: "agente não autorizado para este lead", Err: entity.ErrUnauthorized}
	}

	res, gwErr := uc.Gateway.SendText(ctx, lead.Session, lead.ChatID, input.Text)

	now := time.Now().UTC()
	m := &entity.Message{
		LeadID:    lead.ID,
		Direction: entity.DirectionOut,
		Text:      input.Text,
		Session:   lead.Session,
		Timestamp: now,
		ActorUID:  agent.UID,
		CreatedAt: now,
	}

	var out *SendMessageOutput
	switch {
	case gwErr != nil:
		// Falha de transporte: registra a tentativa com payload sintetizado.
		m.ID = localMessageID()
		m.Status = entity.StatusFailed
		m.Raw = json.RawMessage(fmt.Sprintf(`{"error":%q}`, gwErr.Error()))
		out = &SendMessageOutput{OK: false, GatewayResponse: m.Raw}

	case !res.OK:
		m.ID = localMessageID()
		m.Status = entity.StatusFailed
		m.Raw = res.Raw
		out = &SendMessageOutput{OK: false, GatewayStatus: res.StatusCode, GatewayResponse: res.Raw}

	default:
		m.ID = res.MessageID
		if m.ID == "" {
			m.ID = localMessageID()
		}
		m.Status = entity.StatusSent
		m.Raw = res.Raw
		out = &SendMessageOutput{OK: true, MessageID: m.ID, GatewayStatus: res.StatusCode, GatewayResponse: res.Raw}
	}

	if serr := uc.Store.RecordOutbound(ctx, lead.ID, m); serr != nil {
		if out.OK {
			// Gateway aceitou mas o histórico falhou: loga e devolve sucesso
			// mesmo assim — o envio já aconteceu.
			log.Printf("⚠️ CRITICAL: mensagem %s enviada mas não registrada: %v", m.ID, serr)
		} else {
			return nil, &TechnicalError{Code: CodeTransientStore, Message: "falha ao registrar envio", Err: serr}
		}
	}

	kind := queue.AuditMessageSent
	if !out.OK {
		kind = queue.AuditSendFailed
	}
	uc.auditSend(queue.AuditRecord{
		Kind:      kind,
		LeadID:    lead.ID,
		MessageID: m.ID,
		Session:   lead.Session,
		ChatID:    lead.ChatID,
		ActorUID:  agent.UID,
	})

	return out, nil
}

func (uc *SendMessageUseCase) auditSend(rec queue.AuditRecord) {
	if uc.Audit == nil {
		return
	}
	rec.ID = uuid.New().String()
	rec.At = time.Now().UTC()
	uc.Audit.Publish(rec)
}

// localMessageID gera uma chave para mensagens que o gateway não
// identificou (envios falhados). Prefixo evita colisão com IDs da WAHA.
func localMessageID() string {
	return "local-" + uuid.New().String()
}
