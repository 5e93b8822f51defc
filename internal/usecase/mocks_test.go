package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/waha"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
)

// MockLeadStore - mock do motor transacional
type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) UpsertInbound(ctx context.Context, msg *entity.InboundMessage) (*entity.IngestResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.IngestResult), args.Error(1)
}

func (m *MockLeadStore) RecordOutbound(ctx context.Context, leadID string, msg *entity.Message) error {
	args := m.Called(ctx, leadID, msg)
	return args.Error(0)
}

// MockLeadRepository
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) ListForAgent(ctx context.Context, agent *entity.Agent, limit, offset int) ([]*entity.Lead, error) {
	args := m.Called(ctx, agent, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) ListMessages(ctx context.Context, leadID string, limit int) ([]*entity.Message, error) {
	args := m.Called(ctx, leadID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Message), args.Error(1)
}

func (m *MockLeadRepository) MarkRead(ctx context.Context, leadID string) error {
	args := m.Called(ctx, leadID)
	return args.Error(0)
}

// MockAuditPublisher
type MockAuditPublisher struct {
	mock.Mock
}

func (m *MockAuditPublisher) Publish(rec queue.AuditRecord) {
	m.Called(rec)
}

// MockAlertSender
type MockAlertSender struct {
	mock.Mock
}

func (m *MockAlertSender) NotifyNoAgent(session, chatID string) {
	m.Called(session, chatID)
}

func (m *MockAlertSender) NotifyUnansweredLeads(count int, window time.Duration) {
	m.Called(count, window)
}

// MockWahaGateway
type MockWahaGateway struct {
	mock.Mock
}

func (m *MockWahaGateway) SendText(ctx context.Context, session, chatID, text string) (*waha.SendTextResult, error) {
	args := m.Called(ctx, session, chatID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*waha.SendTextResult), args.Error(1)
}
