package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) MarkUserOnline(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) MarkUserOffline(accountId int, lastSeen time.Time) (User, error) {
	args := m.Called(accountId, lastSeen)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) UpdateUserLocation(accountId int, latitude, longitude float64, updatedAt time.Time) (User, error) {
	args := m.Called(accountId, latitude, longitude, updatedAt)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) UpsertLocation(accountId, roomId int, latitude, longitude float64, updatedAt time.Time) error {
	args := m.Called(accountId, roomId, latitude, longitude, updatedAt)
	return args.Error(0)
}
func (m *MockRepository) GetUserLocation(accountId int) (Location, error) {
	args := m.Called(accountId)
	return args.Get(0).(Location), args.Error(1)
}
func (m *MockRepository) ListRoomLocations(roomId int) ([]Location, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Location), args.Error(1)
}
func (m *MockRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) UpdateRoom(params UpdateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) DeleteRoom(roomId int) error {
	args := m.Called(roomId)
	return args.Error(0)
}
func (m *MockRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) GetRoomWithMembers(roomId int) (*Room, error) {
	args := m.Called(roomId)
	if room, ok := args.Get(0).(*Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) ListRoomsForUser(accountId int) ([]Room, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockRepository) RoomMemberExists(roomId, accountId int) bool {
	args := m.Called(roomId, accountId)
	return args.Bool(0)
}
func (m *MockRepository) CreateInvitation(params CreateInvitationParams) (Invitation, error) {
	args := m.Called(params)
	return args.Get(0).(Invitation), args.Error(1)
}
func (m *MockRepository) GetInvitationById(invitationId int) (Invitation, error) {
	args := m.Called(invitationId)
	return args.Get(0).(Invitation), args.Error(1)
}
func (m *MockRepository) ListInvitationsForEmail(email string) ([]Invitation, error) {
	args := m.Called(email)
	return args.Get(0).([]Invitation), args.Error(1)
}
func (m *MockRepository) ListPendingSentInvitations(senderId int) ([]Invitation, error) {
	args := m.Called(senderId)
	return args.Get(0).([]Invitation), args.Error(1)
}
func (m *MockRepository) PendingInvitationExists(roomId int, email string) bool {
	args := m.Called(roomId, email)
	return args.Bool(0)
}
func (m *MockRepository) AcceptInvitation(invitationId, accountId int) error {
	args := m.Called(invitationId, accountId)
	return args.Error(0)
}
func (m *MockRepository) RejectInvitation(invitationId int) error {
	args := m.Called(invitationId)
	return args.Error(0)
}
func (m *MockRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessages(roomId, limit int) ([]Message, error) {
	args := m.Called(roomId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
