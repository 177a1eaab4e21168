package database

import "time"

type SosRepository interface {
	Ping() error
	CreateEvent(params CreateEventParams) (SosEvent, error)
	GetEventById(id string) (SosEvent, error)
	// AcceptEvent applies the conditional transition pending->accepted and
	// returns the number of rows updated. Zero means the event was missing
	// or no longer pending; the caller decides which by fetching the row.
	AcceptEvent(id, acceptedBy string, acceptedAt time.Time) (int64, error)
	// EndEvent transitions any non-ended event to ended and returns the
	// number of rows updated. Ending an already-ended event updates zero
	// rows and leaves ended_at untouched.
	EndEvent(id string, endedAt time.Time) (int64, error)
	ListEventsByStatus(statuses []string, oldestFirst bool, limit int) ([]SosEvent, error)
}
