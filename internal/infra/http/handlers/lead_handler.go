package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/ligue-crm/internal/entity"
	custommw "github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
)

// LeadHandler is the read surface over leads: list, detail, message
// history and mark-read. All routes require an authenticated agent;
// visibility follows the same owner/team-lead/admin rule as sending.
type LeadHandler struct {
	Leads entity.LeadRepositoryInterface
}

func NewLeadHandler(leads entity.LeadRepositoryInterface) *LeadHandler {
	return &LeadHandler{Leads: leads}
}

func (h *LeadHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	agent := custommw.AgentFrom(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	leads, err := h.Leads.ListForAgent(r.Context(), agent, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}
	if leads == nil {
		leads = []*entity.Lead{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (h *LeadHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := h.Leads.ListMessages(r.Context(), lead.ID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}
	if msgs == nil {
		msgs = []*entity.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *LeadHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	if err := h.Leads.MarkRead(r.Context(), lead.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadAuthorized fetches the lead from the URL and enforces visibility.
// Writes the error response itself when returning ok=false.
func (h *LeadHandler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*entity.Lead, bool) {
	agent := custommw.AgentFrom(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return nil, false
	}

	lead, err := h.Leads.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Lead not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		}
		return nil, false
	}

	if !agent.CanActOn(lead) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
		return nil, false
	}

	return lead, true
}
