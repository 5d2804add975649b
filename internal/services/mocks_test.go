package services_test

import (
	"context"

	"github.com/brightpath/brightpath-api/internal/models"
	"github.com/brightpath/brightpath-api/pkg/turnstile"
	"github.com/stretchr/testify/mock"
)

// MockVerifier is a mock implementation of TokenVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, token, clientKey string) turnstile.Result {
	args := m.Called(ctx, token, clientKey)
	return args.Get(0).(turnstile.Result)
}

// MockContactSink is a mock implementation of ContactSink
type MockContactSink struct {
	mock.Mock
}

func (m *MockContactSink) CreateContact(ctx context.Context, contact *models.CRMContact) (*models.CRMContactResult, error) {
	args := m.Called(ctx, contact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CRMContactResult), args.Error(1)
}

func (m *MockContactSink) CreateNote(ctx context.Context, contactID, body string) error {
	args := m.Called(ctx, contactID, body)
	return args.Error(0)
}

// MockLeadRecorder is a mock implementation of LeadRecorder
type MockLeadRecorder struct {
	mock.Mock
}

func (m *MockLeadRecorder) Create(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}
