package queue

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditLogAppender persiste registros de auditoria (append-only).
type AuditLogAppender interface {
	Append(ctx context.Context, rec AuditRecord) error
}

// AuditWorker consome q.audit e grava cada registro na tabela
// audit_logs. Mensagem malformada vai para a DLQ via Nack sem requeue.
type AuditWorker struct {
	Channel *amqp.Channel
	Logs    AuditLogAppender
}

func NewAuditWorker(ch *amqp.Channel, logs AuditLogAppender) *AuditWorker {
	return &AuditWorker{Channel: ch, Logs: logs}
}

func (w *AuditWorker) Start(queueName string) {
	msgs, err := w.Channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack (manual é mais seguro)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		log.Fatalf("❌ audit worker: falha ao registrar consumidor: %s", err)
	}

	forever := make(chan bool)

	go func() {
		for d := range msgs {
			var rec AuditRecord
			if err := json.Unmarshal(d.Body, &rec); err != nil {
				log.Printf("❌ audit worker: JSON inválido: %s", err)
				// Mensagem podre. Rejeita sem requeue para não travar a fila.
				d.Nack(false, false)
				continue
			}

			if err := w.Logs.Append(context.Background(), rec); err != nil {
				log.Printf("❌ audit worker: erro ao gravar %s: %s", rec.Kind, err)
				d.Nack(false, false)
			} else {
				d.Ack(false)
			}
		}
	}()

	log.Printf(" [*] Audit worker aguardando na fila '%s'", queueName)
	<-forever
}
