package database

import (
	"database/sql"
	"time"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusEnded    = "ended"
)

type SosEvent struct {
	Id          string
	StationId   string
	StationName string
	Status      string
	AcceptedBy  sql.NullString
	CreatedAt   time.Time
	AcceptedAt  sql.NullTime
	EndedAt     sql.NullTime
}

type CreateEventParams struct {
	Id          string
	StationId   string
	StationName string
}
