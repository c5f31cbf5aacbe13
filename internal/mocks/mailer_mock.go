package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/mailer"
)

type TransportMock struct {
	mock.Mock
}

func (m *TransportMock) SendEmail(ctx context.Context, msg dto.EmailMessage, tenantID uint) (mailer.SendResult, error) {
	args := m.Called(ctx, msg, tenantID)

	res, _ := args.Get(0).(mailer.SendResult)
	return res, args.Error(1)
}

type LimiterMock struct {
	mock.Mock
}

func (m *LimiterMock) Allow(ctx context.Context, tenantID uint) (bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Bool(0), args.Error(1)
}
