package handlers

import (
	"context"
	"crypto/subtle"
	"io"
	"log"
	"net/http"

	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1MB

type IngestUseCaseInterface interface {
	Execute(ctx context.Context, raw []byte) (*usecase.IngestOutcome, error)
}

// WebhookHandler recebe as entregas da WAHA. Contrato de resposta:
// 401 genérico se o segredo não bate; fora isso SEMPRE 200 — inclusive
// em falha interna — para o gateway não entrar em retry-storm contra
// um erro que não vai se resolver sozinho.
type WebhookHandler struct {
	Secret string
	Ingest IngestUseCaseInterface
}

func NewWebhookHandler(secret string, ingest IngestUseCaseInterface) *WebhookHandler {
	return &WebhookHandler{Secret: secret, Ingest: ingest}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		// Corpo genérico de propósito: não revela qual campo falhou.
		middleware.RecordWebhookEvent("unauthorized")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("❌ webhook: erro ao ler body: %v", err)
		middleware.RecordWebhookEvent("error")
		writeJSON(w, http.StatusOK, map[string]string{"error": "Internal processing error"})
		return
	}

	outcome, err := h.Ingest.Execute(r.Context(), body)
	if err != nil {
		// Falha mascarada como 200 (ver comentário do tipo). O desfecho
		// real já foi auditado pelo usecase.
		log.Printf("❌ webhook: falha no processamento: %v", err)
		middleware.RecordWebhookEvent("error")
		writeJSON(w, http.StatusOK, map[string]string{"error": "Internal processing error"})
		return
	}

	if outcome.Skipped {
		middleware.RecordWebhookEvent("ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": outcome.Reason})
		return
	}

	if outcome.Result.Duplicate {
		middleware.RecordWebhookEvent("duplicate")
		middleware.RecordDuplicateDelivery()
	} else {
		middleware.RecordWebhookEvent("ok")
		middleware.RecordMessageIngested("in")
		if outcome.Result.LeadCreated {
			middleware.RecordLeadCreated()
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorized valida o segredo compartilhado: header X-Waha-Secret OU
// query param token, igualdade exata. Sem segredo configurado no
// servidor, rejeita tudo (fail closed).
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.Secret == "" {
		return false
	}

	if equalSecret(r.Header.Get("X-Waha-Secret"), h.Secret) {
		return true
	}
	return equalSecret(r.URL.Query().Get("token"), h.Secret)
}

func equalSecret(got, want string) bool {
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
