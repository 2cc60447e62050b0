package database

import "time"

type Repository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)

	// Presence writes. Each returns the updated user record with its
	// created and joined room sets so callers can fan out without a
	// second round trip.
	MarkUserOnline(accountId int) (User, error)
	MarkUserOffline(accountId int, lastSeen time.Time) (User, error)
	UpdateUserLocation(accountId int, latitude, longitude float64, updatedAt time.Time) (User, error)

	// UpsertLocation writes the last position of a user within a room.
	// Creating and updating the (accountId, roomId) row are the same
	// idempotent operation.
	UpsertLocation(accountId, roomId int, latitude, longitude float64, updatedAt time.Time) error
	GetUserLocation(accountId int) (Location, error)
	ListRoomLocations(roomId int) ([]Location, error)

	CreateRoom(params CreateRoomParams) (Room, error)
	UpdateRoom(params UpdateRoomParams) (Room, error)
	DeleteRoom(roomId int) error
	GetRoomByExternalId(externalId string) (Room, error)
	GetRoomWithMembers(roomId int) (*Room, error)
	ListRoomsForUser(accountId int) ([]Room, error)
	RoomMemberExists(roomId, accountId int) bool

	CreateInvitation(params CreateInvitationParams) (Invitation, error)
	GetInvitationById(invitationId int) (Invitation, error)
	ListInvitationsForEmail(email string) ([]Invitation, error)
	ListPendingSentInvitations(senderId int) ([]Invitation, error)
	PendingInvitationExists(roomId int, email string) bool
	AcceptInvitation(invitationId, accountId int) error
	RejectInvitation(invitationId int) error

	CreateMessage(msg Message) (Message, error)
	GetMessages(roomId, limit int) ([]Message, error)
}
