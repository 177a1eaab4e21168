package types

import (
	"time"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusEnded    = "ended"
)

type SosEvent struct {
	Id          string     `json:"id"`
	StationId   string     `json:"stationId"`
	StationName string     `json:"stationName"`
	Status      string     `json:"status"`
	AcceptedBy  string     `json:"acceptedBy,omitempty"`
	RoomName    string     `json:"roomName"`
	CreatedAt   time.Time  `json:"createdAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
}

// Listing is the two-bucket view served to admin consoles: requests
// still waiting for an admin and the most recent resolved ones.
type Listing struct {
	Pending []SosEvent `json:"pending"`
	History []SosEvent `json:"history"`
}
