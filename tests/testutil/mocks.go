package testutil

import (
	"context"

	"github.com/reconciler/backend/internal/domain/identity"
	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of ledger.Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) HasSigner(signer ledger.Signer) bool {
	args := m.Called(signer)
	return args.Bool(0)
}

func (m *MockDispatcher) Mint(ctx context.Context, req ledger.TransferRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockDispatcher) Burn(ctx context.Context, req ledger.TransferRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockDispatcher) Transfer(ctx context.Context, req ledger.TransferRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockProfileSource is a mock implementation of identity.Source
type MockProfileSource struct {
	mock.Mock
}

func (m *MockProfileSource) Lookup(ctx context.Context, account string) (*identity.Profile, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Profile), args.Error(1)
}
