package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Desfechos auditáveis do pipeline.
const (
	AuditWebhookSkipped    = "webhook_skipped"
	AuditMessageIngested   = "message_ingested"
	AuditDuplicateDelivery = "duplicate_delivery"
	AuditResolutionFailure = "resolution_failure"
	AuditIngestFailed      = "ingest_failed"
	AuditMessageSent       = "message_sent"
	AuditSendFailed        = "send_failed"
)

// AuditRecord é o registro imutável de um desfecho do pipeline.
type AuditRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	LeadID    string    `json:"lead_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Session   string    `json:"session,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	ActorUID  string    `json:"actor_uid,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// AuditPublisherInterface: fire-and-forget. Publish nunca bloqueia nem
// propaga falha para o caminho principal.
type AuditPublisherInterface interface {
	Publish(rec AuditRecord)
}

type AuditProducer struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewAuditProducer(conn *amqp.Connection, ch *amqp.Channel) *AuditProducer {
	return &AuditProducer{Conn: conn, Ch: ch}
}

// Publish despacha o registro em background. Falha de publicação é
// engolida e logada — auditoria nunca derruba a operação principal.
func (p *AuditProducer) Publish(rec AuditRecord) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ audit: panic ao publicar: %v", r)
			}
		}()

		body, err := json.Marshal(rec)
		if err != nil {
			log.Printf("⚠️ audit: erro ao converter payload: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = p.Ch.PublishWithContext(ctx,
			ExchangeName,
			RoutingKey,
			false, // Mandatory
			false, // Immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
			},
		)
		if err != nil {
			log.Printf("⚠️ audit: falha ao publicar no RabbitMQ: %v", err)
		}
	}()
}
