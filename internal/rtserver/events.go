package rtserver

import (
	"time"
)

const (
	// inbound
	EventSetup        = "setup_socket"
	EventSendLocation = "send_location"

	// outbound
	EventStatusChange    = "user_status_change"
	EventReceiveLocation = "receive_location"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ClientEvent is an inbound event from a live connection. Latitude and
// longitude are pointers so a 0,0 fix is distinguishable from an
// absent field; only missing fields are treated as malformed.
type ClientEvent struct {
	Event     string   `json:"event"`
	UserId    int      `json:"user_id,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ServerEvent is an outbound room broadcast.
type ServerEvent struct {
	Event     string     `json:"event"`
	UserId    int        `json:"user_id"`
	Status    string     `json:"status,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

func UserOnline(userId int) *ServerEvent {
	return &ServerEvent{
		Event:  EventStatusChange,
		UserId: userId,
		Status: StatusOnline,
	}
}

func UserOffline(userId int, lastSeen time.Time) *ServerEvent {
	return &ServerEvent{
		Event:    EventStatusChange,
		UserId:   userId,
		Status:   StatusOffline,
		LastSeen: &lastSeen,
	}
}

func ReceiveLocation(userId int, latitude, longitude float64, updatedAt time.Time) *ServerEvent {
	return &ServerEvent{
		Event:     EventReceiveLocation,
		UserId:    userId,
		Latitude:  &latitude,
		Longitude: &longitude,
		UpdatedAt: &updatedAt,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
