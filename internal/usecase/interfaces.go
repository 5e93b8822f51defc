package usecase

import (
	"context"

	"github.com/xavierca1/ligue-crm/internal/infra/integration/waha"
)

// WahaGateway é o contrato do envio outbound via WAHA.
type WahaGateway interface {
	SendText(ctx context.Context, session, chatID, text string) (*waha.SendTextResult, error)
}

// AlertSender notifica a operação sobre falhas que pedem ação humana.
// Fire-and-forget: implementações não bloqueiam nem propagam erro.
type AlertSender interface {
	NotifyNoAgent(session, chatID string)
}
