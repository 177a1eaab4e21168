package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockSosRepository struct {
	mock.Mock
}

func (m *MockSosRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockSosRepository) CreateEvent(params CreateEventParams) (SosEvent, error) {
	args := m.Called(params)
	return args.Get(0).(SosEvent), args.Error(1)
}
func (m *MockSosRepository) GetEventById(id string) (SosEvent, error) {
	args := m.Called(id)
	return args.Get(0).(SosEvent), args.Error(1)
}
func (m *MockSosRepository) AcceptEvent(id, acceptedBy string, acceptedAt time.Time) (int64, error) {
	args := m.Called(id, acceptedBy, acceptedAt)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockSosRepository) EndEvent(id string, endedAt time.Time) (int64, error) {
	args := m.Called(id, endedAt)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockSosRepository) ListEventsByStatus(statuses []string, oldestFirst bool, limit int) ([]SosEvent, error) {
	args := m.Called(statuses, oldestFirst, limit)
	return args.Get(0).([]SosEvent), args.Error(1)
}
