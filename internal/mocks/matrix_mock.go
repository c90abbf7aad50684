package mocks

import (
	"context"

	"github.com/DanNixon/matrix-remote-closedown/pkg/matrix"
	"github.com/stretchr/testify/mock"
)

// MockChatSession is a mock implementation of the services.ChatSession interface
type MockChatSession struct {
	mock.Mock
}

func (m *MockChatSession) UserID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockChatSession) JoinRoom(ctx context.Context, roomIDOrAlias string) (string, error) {
	args := m.Called(ctx, roomIDOrAlias)
	return args.String(0), args.Error(1)
}

func (m *MockChatSession) Sync(ctx context.Context, options matrix.SyncOptions) (*matrix.SyncResponse, error) {
	args := m.Called(ctx, options)
	response, _ := args.Get(0).(*matrix.SyncResponse)
	return response, args.Error(1)
}

func (m *MockChatSession) SendMessage(ctx context.Context, roomID string, content matrix.MessageContent) (string, error) {
	args := m.Called(ctx, roomID, content)
	return args.String(0), args.Error(1)
}
