package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
)

type CampaignServiceMock struct {
	mock.Mock
}

func (m *CampaignServiceMock) StartSend(ctx context.Context, tenantID, campaignID uint, batchSize int) error {
	args := m.Called(ctx, tenantID, campaignID, batchSize)
	return args.Error(0)
}

func (m *CampaignServiceMock) Cancel(ctx context.Context, tenantID, campaignID uint) error {
	args := m.Called(ctx, tenantID, campaignID)
	return args.Error(0)
}

func (m *CampaignServiceMock) Resume(ctx context.Context, tenantID, campaignID uint, batchSize int) (int, error) {
	args := m.Called(ctx, tenantID, campaignID, batchSize)
	return args.Int(0), args.Error(1)
}

func (m *CampaignServiceMock) Status(ctx context.Context, tenantID, campaignID uint) (*dto.CampaignStatusDTO, error) {
	args := m.Called(ctx, tenantID, campaignID)

	s, _ := args.Get(0).(*dto.CampaignStatusDTO)
	return s, args.Error(1)
}
