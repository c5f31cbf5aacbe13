package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/webramesh/email-marketing-sub000/internal/models"
)

type AutomationServiceMock struct {
	mock.Mock
}

func (m *AutomationServiceMock) StartExecution(ctx context.Context, tenantID, automationID, subscriberID uint, variables map[string]any) (string, bool, error) {
	args := m.Called(ctx, tenantID, automationID, subscriberID, variables)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *AutomationServiceMock) Publish(ctx context.Context, tenantID, automationID uint) error {
	args := m.Called(ctx, tenantID, automationID)
	return args.Error(0)
}

func (m *AutomationServiceMock) GetExecution(ctx context.Context, executionID string) (*models.AutomationExecution, error) {
	args := m.Called(ctx, executionID)

	e, _ := args.Get(0).(*models.AutomationExecution)
	return e, args.Error(1)
}
