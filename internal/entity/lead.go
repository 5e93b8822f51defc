package entity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	SourceWhatsApp = "whatsapp"
	SourceWeb      = "web"
	SourceManual   = "manual"

	// Estágio inicial do funil
	StageNew = "NEW"

	PreviewMaxLen = 100
)

// Entidade: Lead (raiz do agregado, dona das mensagens)
type Lead struct {
	ID       string `json:"id"`
	ChatID   string `json:"chat_id"`
	Session  string `json:"session"`
	OwnerUID string `json:"owner_uid"`
	TeamID   string `json:"team_id"`
	Source   string `json:"source"`

	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Stage        string `json:"stage"`

	LastMessageAt      time.Time `json:"last_message_at"`
	LastMessagePreview string    `json:"last_message_preview"`
	UnreadCount        int       `json:"unread_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeadKey deriva o ID do lead a partir de (chatID, session).
// Chave determinística: duas entregas concorrentes do primeiro contato
// disputam a MESMA linha em vez de criar leads duplicados.
func LeadKey(chatID, session string) string {
	sum := sha256.Sum256([]byte(chatID + "|" + session))
	return hex.EncodeToString(sum[:16])
}

// PhoneFromChatID extrai o telefone de um chat id do WhatsApp.
// Ex: "5511999999999@c.us" -> "+5511999999999"
func PhoneFromChatID(chatID string) string {
	phone := chatID
	if i := strings.IndexByte(phone, '@'); i >= 0 {
		phone = phone[:i]
	}
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}

// TruncatePreview corta o texto em PreviewMaxLen caracteres (runes, não bytes).
func TruncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewMaxLen {
		return text
	}
	return string(runes[:PreviewMaxLen])
}

type LeadRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*Lead, error)
	ListForAgent(ctx context.Context, agent *Agent, limit, offset int) ([]*Lead, error)
	ListMessages(ctx context.Context, leadID string, limit int) ([]*Message, error)
	MarkRead(ctx context.Context, leadID string) error
}

// LeadStoreInterface é o motor transacional de ingestão.
// Implementações garantem atomicidade lead+mensagem e idempotência
// por (lead, message id).
type LeadStoreInterface interface {
	UpsertInbound(ctx context.Context, msg *InboundMessage) (*IngestResult, error)
	RecordOutbound(ctx context.Context, leadID string, m *Message) error
}
