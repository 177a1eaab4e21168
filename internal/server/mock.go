package server

import "github.com/stretchr/testify/mock"

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PublishToAdmins(n *Notification) {
	m.Called(n)
}

func (m *MockNotifier) PublishToEventSubscribers(sosId string, n *Notification) {
	m.Called(sosId, n)
}
