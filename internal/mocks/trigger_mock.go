package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type TriggersMock struct {
	mock.Mock
}

func (m *TriggersMock) HandleEmailOpenedTrigger(ctx context.Context, tenantID, subscriberID uint, campaignID *uint, emailID string) (int, error) {
	args := m.Called(ctx, tenantID, subscriberID, campaignID, emailID)
	return args.Int(0), args.Error(1)
}

func (m *TriggersMock) HandleEmailClickedTrigger(ctx context.Context, tenantID, subscriberID uint, campaignID *uint, linkURL, emailID string) (int, error) {
	args := m.Called(ctx, tenantID, subscriberID, campaignID, linkURL, emailID)
	return args.Int(0), args.Error(1)
}
