package usecase

import (
	"encoding/json"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// Motivos de descarte devolvidos pelo normalizador. Eventos descartados
// são reconhecidos com 200 {status:"ignored"} — nunca erro, para o
// gateway não ficar re-entregando um payload que nunca vai processar.
const (
	SkipInvalidPayload = "invalid payload"
	SkipNotMessage     = "not a message event"
	SkipMissingFields  = "missing required fields"
)

// Envelope do webhook da WAHA. Campos do data como ponteiros para
// distinguir ausente de zero: body="" é mensagem válida, body ausente não.
type wahaEnvelope struct {
	Event   string           `json:"event"`
	Session string           `json:"session"`
	Data    *wahaMessageData `json:"data"`
}

type wahaMessageData struct {
	ID         *string  `json:"id"`
	From       *string  `json:"from"`
	Body       *string  `json:"body"`
	Timestamp  *float64 `json:"timestamp"`
	NotifyName string   `json:"notifyName"`
}

// NormalizeEvent transforma o payload bruto do webhook no evento canônico.
// Função pura: sem efeitos colaterais. Retorna (nil, motivo) quando o
// evento deve ser ignorado.
func NormalizeEvent(raw []byte) (*entity.InboundMessage, string) {
	var env wahaEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, SkipInvalidPayload
	}

	if env.Event != "message" || env.Data == nil {
		return nil, SkipNotMessage
	}

	d := env.Data
	if d.ID == nil || d.From == nil || d.Body == nil || d.Timestamp == nil || env.Session == "" {
		return nil, SkipMissingFields
	}

	return &entity.InboundMessage{
		MessageID:  *d.ID,
		ChatID:     *d.From,
		Session:    env.Session,
		Body:       *d.Body,
		NotifyName: d.NotifyName,
		Timestamp:  time.Unix(int64(*d.Timestamp), 0).UTC(),
		Raw:        json.RawMessage(raw),
	}, ""
}
