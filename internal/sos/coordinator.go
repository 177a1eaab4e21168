package sos

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/teris-io/shortid"
	"github.com/worachat-d/go-sos-center/internal/database"
	"github.com/worachat-d/go-sos-center/internal/server"
	"github.com/worachat-d/go-sos-center/internal/stats"
	"github.com/worachat-d/go-sos-center/internal/types"
)

const (
	roomNamePrefix = "sos-room-"
	historyLimit   = 50
)

// RoomName derives the media room for an event. It is a pure function of
// the id so the broker, stations and consoles all compute the same value
// without coordination.
func RoomName(id string) string {
	return roomNamePrefix + id
}

// Coordinator owns the SOS lifecycle: pending -> accepted -> ended, with
// the direct pending -> ended edge for stations that hang up before any
// admin claims the call. The store's conditional update is the only
// concurrency control; the coordinator holds no locks of its own.
type Coordinator struct {
	log      *log.Logger
	db       database.SosRepository
	notifier server.Notifier
	stats    stats.StatsProvider
	// generateId is swapped out in tests for deterministic ids.
	generateId func() (string, error)
}

func NewCoordinator(logger *log.Logger, db database.SosRepository, notifier server.Notifier, st stats.StatsProvider) *Coordinator {
	st.RegisterMetric(stats.SosCreated)
	st.RegisterMetric(stats.SosAccepted)
	st.RegisterMetric(stats.SosEnded)

	return &Coordinator{
		log:        logger,
		db:         db,
		notifier:   notifier,
		stats:      st,
		generateId: shortid.Generate,
	}
}

// Create registers a new pending event for a station and notifies every
// admin console.
func (c *Coordinator) Create(stationId, stationName string) (types.SosEvent, error) {
	if stationId == "" || stationName == "" {
		return types.SosEvent{}, fmt.Errorf("%w: station id and name are required", ErrInvalidArgument)
	}

	id, err := c.generateId()
	if err != nil {
		return types.SosEvent{}, fmt.Errorf("generate event id: %w", err)
	}

	dbEvent, err := c.db.CreateEvent(database.CreateEventParams{
		Id:          id,
		StationId:   stationId,
		StationName: stationName,
	})
	if err != nil {
		return types.SosEvent{}, fmt.Errorf("create event: %w", err)
	}

	event := toApiEvent(dbEvent)
	c.stats.Incr(stats.SosCreated)

	c.notifier.PublishToAdmins(&server.Notification{
		New: &server.NewEvent{
			SosId:       event.Id,
			StationId:   event.StationId,
			StationName: event.StationName,
			RoomName:    event.RoomName,
			CreatedAt:   event.CreatedAt,
		},
	})

	return event, nil
}

// Accept attempts the pending -> accepted transition for adminName. When
// several admins race on the same id, the store's compare-and-set lets
// exactly one through; everyone else gets ErrEventConflict. The broadcast
// happens strictly after the durable write so a losing accept can never
// produce a phantom notification.
func (c *Coordinator) Accept(id, adminName string) (types.SosEvent, error) {
	if id == "" || adminName == "" {
		return types.SosEvent{}, fmt.Errorf("%w: sos id and admin name are required", ErrInvalidArgument)
	}

	updated, err := c.db.AcceptEvent(id, adminName, time.Now().UTC())
	if err != nil {
		return types.SosEvent{}, fmt.Errorf("accept event: %w", err)
	}

	if updated == 0 {
		if _, err := c.db.GetEventById(id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.SosEvent{}, ErrEventNotFound
			}
			return types.SosEvent{}, fmt.Errorf("get event: %w", err)
		}
		return types.SosEvent{}, ErrEventConflict
	}

	dbEvent, err := c.db.GetEventById(id)
	if err != nil {
		// The transition is already durable; surface the read failure
		// but the accept itself has happened.
		return types.SosEvent{}, fmt.Errorf("get accepted event: %w", err)
	}

	event := toApiEvent(dbEvent)
	c.stats.Incr(stats.SosAccepted)

	accepted := &server.AcceptedEvent{
		SosId:       event.Id,
		StationId:   event.StationId,
		StationName: event.StationName,
		AcceptedBy:  event.AcceptedBy,
		RoomName:    event.RoomName,
	}
	if event.AcceptedAt != nil {
		accepted.AcceptedAt = *event.AcceptedAt
	}

	c.notifier.PublishToAdmins(&server.Notification{Accepted: accepted})
	c.notifier.PublishToEventSubscribers(event.Id, &server.Notification{Accepted: accepted})

	return event, nil
}

// End moves an event to its terminal state. Ending an already-ended event
// is a no-op success: ended_at keeps its original value and nothing is
// re-broadcast. Either the station or the claiming admin may call this;
// no participant check is enforced.
func (c *Coordinator) End(id string) (types.SosEvent, error) {
	if id == "" {
		return types.SosEvent{}, fmt.Errorf("%w: sos id is required", ErrInvalidArgument)
	}

	updated, err := c.db.EndEvent(id, time.Now().UTC())
	if err != nil {
		return types.SosEvent{}, fmt.Errorf("end event: %w", err)
	}

	dbEvent, err := c.db.GetEventById(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.SosEvent{}, ErrEventNotFound
		}
		return types.SosEvent{}, fmt.Errorf("get event: %w", err)
	}

	event := toApiEvent(dbEvent)
	if updated == 0 {
		// Already ended; the original transition broadcast it.
		return event, nil
	}

	c.stats.Incr(stats.SosEnded)

	ended := &server.Notification{Ended: &server.EndedEvent{SosId: event.Id}}
	c.notifier.PublishToAdmins(ended)
	c.notifier.PublishToEventSubscribers(event.Id, ended)

	return event, nil
}

// List returns pending events oldest-first so the longest-waiting call is
// on top, and the most recent resolved events newest-first.
func (c *Coordinator) List() (types.Listing, error) {
	pending, err := c.db.ListEventsByStatus([]string{database.StatusPending}, true, 0)
	if err != nil {
		return types.Listing{}, fmt.Errorf("list pending events: %w", err)
	}

	history, err := c.db.ListEventsByStatus([]string{database.StatusAccepted, database.StatusEnded}, false, historyLimit)
	if err != nil {
		return types.Listing{}, fmt.Errorf("list event history: %w", err)
	}

	listing := types.Listing{
		Pending: make([]types.SosEvent, 0, len(pending)),
		History: make([]types.SosEvent, 0, len(history)),
	}
	for _, e := range pending {
		listing.Pending = append(listing.Pending, toApiEvent(e))
	}
	for _, e := range history {
		listing.History = append(listing.History, toApiEvent(e))
	}

	return listing, nil
}

func toApiEvent(e database.SosEvent) types.SosEvent {
	event := types.SosEvent{
		Id:          e.Id,
		StationId:   e.StationId,
		StationName: e.StationName,
		Status:      e.Status,
		RoomName:    RoomName(e.Id),
		CreatedAt:   e.CreatedAt,
	}

	if e.AcceptedBy.Valid {
		event.AcceptedBy = e.AcceptedBy.String
	}
	if e.AcceptedAt.Valid {
		t := e.AcceptedAt.Time
		event.AcceptedAt = &t
	}
	if e.EndedAt.Valid {
		t := e.EndedAt.Time
		event.EndedAt = &t
	}

	return event
}
