package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xavierca1/ligue-crm/internal/entity"
	custommw "github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type SendUseCaseInterface interface {
	Execute(ctx context.Context, agent *entity.Agent, input usecase.SendMessageInput) (*usecase.SendMessageOutput, error)
}

type MessageHandler struct {
	Send     SendUseCaseInterface
	validate *validator.Validate
}

func NewMessageHandler(send SendUseCaseInterface) *MessageHandler {
	return &MessageHandler{
		Send:     send,
		validate: validator.New(),
	}
}

// HandleSend: POST /messages/send {lead_id, text}. Requer agente
// autenticado (RequireAgent). Rejeição do gateway volta com o status
// HTTP do próprio gateway e o corpo preservado.
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	agent := custommw.AgentFrom(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var input usecase.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	out, err := h.Send.Execute(r.Context(), agent, input)
	if err != nil {
		var domainErr *usecase.DomainError
		if errors.As(err, &domainErr) {
			switch domainErr.Code {
			case usecase.CodeLeadNotFound:
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "Lead not found"})
			case usecase.CodeUnauthorized:
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
			default:
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": domainErr.Message})
			}
			return
		}
		custommw.RecordIntegrationError("database")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}

	if !out.OK {
		custommw.RecordIntegrationError("waha")
		status := out.GatewayStatus
		if status == 0 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, out)
		return
	}

	custommw.RecordMessageIngested("out")
	writeJSON(w, http.StatusOK, out)
}
