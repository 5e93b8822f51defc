package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/waha"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
)

func sendFixture() (*MockLeadRepository, *MockLeadStore, *MockWahaGateway, *SendMessageUseCase, *entity.Lead) {
	leads := new(MockLeadRepository)
	store := new(MockLeadStore)
	gateway := new(MockWahaGateway)

	lead := &entity.Lead{
		ID:       "lead-1",
		ChatID:   "5511999999999@c.us",
		Session:  "default",
		OwnerUID: "agent-1",
		TeamID:   "team-a",
	}

	uc := NewSendMessageUseCase(leads, store, gateway, nil)
	return leads, store, gateway, uc, lead
}

func TestSendExecute_OwnerSends(t *testing.T) {
	leads, store, gateway, uc, lead := sendFixture()
	leads.On("FindByID", mock.Anything, "lead-1").Return(lead, nil)

	gateway.On("SendText", mock.Anything, "default", "5511999999999@c.us", "bom dia!").
		Return(&waha.SendTextResult{OK: true, MessageID: "wamid.OUT1", StatusCode: 201, Raw: json.RawMessage(`{"id":"wamid.OUT1"}`)}, nil)

	store.On("RecordOutbound", mock.Anything, "lead-1", mock.MatchedBy(func(m *entity.Message) bool {
		return m.ID == "wamid.OUT1" &&
			m.Direction == entity.DirectionOut &&
			m.Status == entity.StatusSent &&
			m.ActorUID == "agent-1" &&
			m.Text == "bom dia!"
	})).Return(nil)

	agent := &entity.Agent{UID: "agent-1", Role: entity.RoleSales}
	out, err := uc.Execute(context.Background(), agent, SendMessageInput{LeadID: "lead-1", Text: "bom dia!"})

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "wamid.OUT1", out.MessageID)
	assert.Equal(t, 201, out.GatewayStatus)

	store.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestSendExecute_AuthorizationMatrix(t *testing.T) {
	tests := []struct {
		name    string
		agent   *entity.Agent
		allowed bool
	}{
		{"dono do lead", &entity.Agent{UID: "agent-1", Role: entity.RoleSales, TeamID: "team-a"}, true},
		{"outro vendedor do time", &entity.Agent{UID: "agent-2", Role: entity.RoleSales, TeamID: "team-a"}, false},
		{"líder do time do lead", &entity.Agent{UID: "tl-1", Role: entity.RoleTeamLead, TeamID: "team-a"}, true},
		{"líder de outro time", &entity.Agent{UID: "tl-2", Role: entity.RoleTeamLead, TeamID: "team-b"}, false},
		{"admin", &entity.Agent{UID: "adm-1", Role: entity.RoleAdmin}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads, store, gateway, uc, lead := sendFixture()
			leads.On("FindByID", mock.Anything, "lead-1").Return(lead, nil)

			if tt.allowed {
				gateway.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(&waha.SendTextResult{OK: true, MessageID: "wamid.X", StatusCode: 200}, nil)
				store.On("RecordOutbound", mock.Anything, "lead-1", mock.Anything).Return(nil)
			}

			out, err := uc.Execute(context.Background(), tt.agent, SendMessageInput{LeadID: "lead-1", Text: "oi"})

			if tt.allowed {
				require.NoError(t, err)
				assert.True(t, out.OK)
			} else {
				var domainErr *DomainError
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, CodeUnauthorized, domainErr.Code)
				// Autorização vem ANTES do gateway
				gateway.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSendExecute_LeadNotFound(t *testing.T) {
	leads, _, gateway, uc, _ := sendFixture()
	leads.On("FindByID", mock.Anything, "nope").Return(nil, entity.ErrLeadNotFound)

	agent := &entity.Agent{UID: "agent-1", Role: entity.RoleAdmin}
	_, err := uc.Execute(context.Background(), agent, SendMessageInput{LeadID: "nope", Text: "oi"})

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeLeadNotFound, domainErr.Code)
	gateway.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendExecute_GatewayRejection(t *testing.T) {
	leads, store, gateway, uc, lead := sendFixture()
	leads.On("FindByID", mock.Anything, "lead-1").Return(lead, nil)

	rawErr := json.RawMessage(`{"error":"session not connected"}`)
	gateway.On("SendText", mock.Anything, "default", "5511999999999@c.us", "oi").
		Return(&waha.SendTextResult{OK: false, StatusCode: 422, Raw: rawErr}, nil)

	// A tentativa falhada também vai para o histórico, com o payload de
	// erro do gateway preservado.
	store.On("RecordOutbound", mock.Anything, "lead-1", mock.MatchedBy(func(m *entity.Message) bool {
		return m.Status == entity.StatusFailed &&
			strings.HasPrefix(m.ID, "local-") &&
			string(m.Raw) == string(rawErr)
	})).Return(nil)

	agent := &entity.Agent{UID: "agent-1", Role: entity.RoleSales}
	out, err := uc.Execute(context.Background(), agent, SendMessageInput{LeadID: "lead-1", Text: "oi"})

	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, 422, out.GatewayStatus)
	assert.Equal(t, string(rawErr), string(out.GatewayResponse))
	store.AssertExpectations(t)
}

func TestSendExecute_TransportFailure(t *testing.T) {
	leads, store, gateway, uc, lead := sendFixture()
	leads.On("FindByID", mock.Anything, "lead-1").Return(lead, nil)

	gateway.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("dial tcp: connection refused"))

	store.On("RecordOutbound", mock.Anything, "lead-1", mock.MatchedBy(func(m *entity.Message) bool {
		return m.Status == entity.StatusFailed && strings.Contains(string(m.Raw), "connection refused")
	})).Return(nil)

	agent := &entity.Agent{UID: "agent-1", Role: entity.RoleSales}
	out, err := uc.Execute(context.Background(), agent, SendMessageInput{LeadID: "lead-1", Text: "oi"})

	require.NoError(t, err)
	assert.False(t, out.OK)
	store.AssertExpectations(t)
}

func TestSendExecute_HistoryFailureAfterSentStillSucceeds(t *testing.T) {
	leads, store, gateway, uc, lead := sendFixture()
	leads.On("FindByID", mock.Anything, "lead-1").Return(lead, nil)

	gateway.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&waha.SendTextResult{OK: true, MessageID: "wamid.OUT2", StatusCode: 200}, nil)
	store.On("RecordOutbound", mock.Anything, "lead-1", mock.Anything).
		Return(errors.New("pq: deadlock"))

	agent := &entity.Agent{UID: "agent-1", Role: entity.RoleSales}
	out, err := uc.Execute(context.Background(), agent, SendMessageInput{LeadID: "lead-1", Text: "oi"})

	// O envio já aconteceu; perder o histórico não pode virar erro pro caller.
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestSendExecute_AuditRecordsOutcome(t *testing.T) {
	leads := new(MockLeadRepository)
	store := new(MockLeadStore)
	gateway := new(MockWahaGateway)
	audit := new(MockAuditPublisher)

	lead := &entity.Lead{ID: "lead-1", ChatID: "55@c.us", Session: "default", OwnerUID: "agent-1"}
	leads.On("FindByID", mock.Anything, "lead-1").Return(lead, nil)
	gateway.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&waha.SendTextResult{OK: true, MessageID: "wamid.OUT3", StatusCode: 200}, nil)
	store.On("RecordOutbound", mock.Anything, "lead-1", mock.Anything).Return(nil)
	audit.On("Publish", mock.MatchedBy(func(rec queue.AuditRecord) bool {
		return rec.Kind == queue.AuditMessageSent && rec.ActorUID == "agent-1" && rec.MessageID == "wamid.OUT3"
	})).Return()

	uc := NewSendMessageUseCase(leads, store, gateway, audit)

	agent := &entity.Agent{UID: "agent-1", Role: entity.RoleSales}
	_, err := uc.Execute(context.Background(), agent, SendMessageInput{LeadID: "lead-1", Text: "oi"})

	require.NoError(t, err)
	audit.AssertExpectations(t)
}
