package database

import "time"

type User struct {
	Id                int
	Username          string
	EmailAddress      string
	PasswordHash      string
	Latitude          *float64
	Longitude         *float64
	LocationUpdatedAt *time.Time
	IsOnline          bool
	LastSeen          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	// RoomsCreated and RoomsJoined are populated by the presence
	// queries. Their union is the user's effective room set; the two
	// lists may overlap since a creator also holds a membership row.
	RoomsCreated []RoomRef
	RoomsJoined  []RoomRef
}

// RoomRef identifies a room both by its internal id (storage key) and
// its external short id (broadcast channel key).
type RoomRef struct {
	Id         int
	ExternalId string
}

type Room struct {
	Id          int
	ExternalId  string
	Name        string
	Description string
	CreatorId   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Members     []User
}

// Location is the last position of a user within one room, keyed
// uniquely by (UserId, RoomId).
type Location struct {
	UserId    int
	Username  string
	RoomId    int
	Latitude  float64
	Longitude float64
	UpdatedAt time.Time
}

type Invitation struct {
	Id            int
	RoomId        int
	RoomName      string
	SenderId      int
	SenderName    string
	ReceiverEmail string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRejected = "rejected"
)

type Message struct {
	Id        int
	RoomId    int
	UserId    int
	Content   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Name        string
	Description string
	CreatorId   int
	ExternalId  string
}

type UpdateRoomParams struct {
	RoomId      int
	Name        string
	Description string
}

type CreateInvitationParams struct {
	RoomId        int
	SenderId      int
	ReceiverEmail string
}
