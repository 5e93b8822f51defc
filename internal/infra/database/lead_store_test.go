package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

func inboundFixture() *entity.InboundMessage {
	return &entity.InboundMessage{
		MessageID:  "wamid.IN1",
		ChatID:     "5511999999999@c.us",
		Session:    "default",
		Body:       "quero saber do plano",
		NotifyName: "João Silva",
		Timestamp:  time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Raw:        json.RawMessage(`{"event":"message"}`),
	}
}

func TestApplyInbound_CreatesLead(t *testing.T) {
	msg := inboundFixture()
	agent := &entity.Agent{UID: "agent-1", TeamID: "team-a", Role: entity.RoleSales}
	now := time.Date(2026, 8, 20, 12, 0, 5, 0, time.UTC)

	lead, m := applyInbound(nil, agent, msg, now)

	assert.Equal(t, entity.LeadKey(msg.ChatID, msg.Session), lead.ID)
	assert.Equal(t, "agent-1", lead.OwnerUID)
	assert.Equal(t, "team-a", lead.TeamID)
	assert.Equal(t, entity.SourceWhatsApp, lead.Source)
	assert.Equal(t, entity.StageNew, lead.Stage)
	assert.Equal(t, "João Silva", lead.CustomerName)
	assert.Equal(t, "+5511999999999", lead.Phone)
	assert.Equal(t, 1, lead.UnreadCount)
	assert.Equal(t, msg.Timestamp, lead.LastMessageAt)
	assert.Equal(t, "quero saber do plano", lead.LastMessagePreview)
	assert.Equal(t, now, lead.CreatedAt)
	assert.Equal(t, now, lead.UpdatedAt)

	assert.Equal(t, "wamid.IN1", m.ID)
	assert.Equal(t, lead.ID, m.LeadID)
	assert.Equal(t, entity.DirectionIn, m.Direction)
	assert.Equal(t, entity.StatusDelivered, m.Status)
	assert.Equal(t, string(msg.Raw), string(m.Raw))
}

func TestApplyInbound_NameFallsBackToPhone(t *testing.T) {
	msg := inboundFixture()
	msg.NotifyName = ""
	agent := &entity.Agent{UID: "agent-1"}

	lead, _ := applyInbound(nil, agent, msg, time.Now().UTC())
	assert.Equal(t, "+5511999999999", lead.CustomerName)
}

func TestApplyInbound_UpdatesExistingLead(t *testing.T) {
	msg := inboundFixture()
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	existing := &entity.Lead{
		ID:                 entity.LeadKey(msg.ChatID, msg.Session),
		ChatID:             msg.ChatID,
		Session:            msg.Session,
		OwnerUID:           "agent-original",
		TeamID:             "team-original",
		Stage:              "NEGOTIATING",
		CustomerName:       "João Silva",
		UnreadCount:        3,
		LastMessageAt:      time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC),
		LastMessagePreview: "mensagem antiga",
		CreatedAt:          created,
	}
	now := time.Date(2026, 8, 20, 12, 0, 5, 0, time.UTC)

	lead, _ := applyInbound(existing, nil, msg, now)

	assert.Equal(t, 4, lead.UnreadCount)
	assert.Equal(t, "quero saber do plano", lead.LastMessagePreview)
	assert.Equal(t, msg.Timestamp, lead.LastMessageAt)
	assert.Equal(t, now, lead.UpdatedAt)

	// Dono, time, estágio e criação nunca mudam em lead existente
	assert.Equal(t, "agent-original", lead.OwnerUID)
	assert.Equal(t, "team-original", lead.TeamID)
	assert.Equal(t, "NEGOTIATING", lead.Stage)
	assert.Equal(t, created, lead.CreatedAt)

	// O original não é mutado
	assert.Equal(t, 3, existing.UnreadCount)
}

func TestApplyInbound_LateEventDoesNotRegressPreview(t *testing.T) {
	msg := inboundFixture()
	msg.Timestamp = time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC) // mais antigo

	existing := &entity.Lead{
		ID:                 entity.LeadKey(msg.ChatID, msg.Session),
		UnreadCount:        1,
		LastMessageAt:      time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC),
		LastMessagePreview: "mensagem mais recente",
	}

	lead, m := applyInbound(existing, nil, msg, time.Now().UTC())

	// Evento atrasado: entra no histórico e conta como não lida...
	assert.Equal(t, 2, lead.UnreadCount)
	require.NotNil(t, m)
	assert.Equal(t, msg.Timestamp, m.Timestamp)

	// ...mas o preview não volta no tempo.
	assert.Equal(t, "mensagem mais recente", lead.LastMessagePreview)
	assert.Equal(t, existing.LastMessageAt, lead.LastMessageAt)
}

func TestApplyInbound_TruncatesPreview(t *testing.T) {
	msg := inboundFixture()
	msg.Body = strings.Repeat("x", 250)
	agent := &entity.Agent{UID: "agent-1"}

	lead, m := applyInbound(nil, agent, msg, time.Now().UTC())

	assert.Len(t, lead.LastMessagePreview, 100)
	// A mensagem guarda o texto inteiro; só o preview é cortado.
	assert.Len(t, m.Text, 250)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, isRetryable(&pq.Error{Code: "40P01"}))
	assert.True(t, isRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, isRetryable(&pq.Error{Code: "23503"}))
	assert.False(t, isRetryable(errors.New("qualquer outro erro")))
	assert.False(t, isRetryable(entity.ErrNoAgentForSession))

	// Erro embrulhado também é detectado
	wrapped := fmt.Errorf("tx: %w", &pq.Error{Code: "40001"})
	assert.True(t, isRetryable(wrapped))
}

func TestWithBackoff_RetriesSerializationFailure(t *testing.T) {
	calls := 0
	err := withBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	boom := errors.New("constraint violated")
	err := withBackoff(context.Background(), func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := withBackoff(context.Background(), func() error {
		calls++
		return &pq.Error{Code: "40001"}
	})

	require.Error(t, err)
	assert.Equal(t, maxTxAttempts, calls)
	assert.Contains(t, err.Error(), "tentativas")

	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
}

func TestWithBackoff_RespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withBackoff(ctx, func() error {
		calls++
		return &pq.Error{Code: "40001"}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
