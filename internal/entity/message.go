package entity

import (
	"encoding/json"
	"time"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"

	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Entidade: Message. O ID é o identificador atribuído pelo gateway —
// é a chave de deduplicação, não um ID gerado por nós.
type Message struct {
	ID        string          `json:"id"`
	LeadID    string          `json:"lead_id"`
	Direction string          `json:"direction"`
	Text      string          `json:"text"`
	Session   string          `json:"session"`
	Timestamp time.Time       `json:"timestamp"`
	Status    string          `json:"status"`
	ActorUID  string          `json:"actor_uid,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// InboundMessage é o evento canônico produzido pelo normalizador
// a partir do payload bruto do webhook.
type InboundMessage struct {
	MessageID  string
	ChatID     string
	Session    string
	Body       string
	NotifyName string
	Timestamp  time.Time
	Raw        json.RawMessage
}

// IngestResult descreve o efeito de uma ingestão.
type IngestResult struct {
	LeadID      string
	LeadCreated bool
	Duplicate   bool
}
