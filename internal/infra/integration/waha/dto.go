package waha

import "encoding/json"

type SendTextInput struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

// SendTextResult carrega o desfecho da chamada ao gateway. Raw preserva
// o corpo da resposta verbatim — em caso de rejeição ele vira o payload
// de erro gravado na mensagem.
type SendTextResult struct {
	OK         bool            `json:"ok"`
	MessageID  string          `json:"message_id,omitempty"`
	StatusCode int             `json:"status_code"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

type sendTextResponse struct {
	ID struct {
		Serialized string `json:"_serialized"`
	} `json:"id"`
	MessageID string `json:"messageId"`
}

// messageID aceita os dois formatos que a WAHA já devolveu em versões
// diferentes: {id:{_serialized}} e {messageId}.
func (r *sendTextResponse) messageID() string {
	if r.ID.Serialized != "" {
		return r.ID.Serialized
	}
	return r.MessageID
}
