package database

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

const eventColumns = "id, station_id, station_name, status, accepted_by, created_at, accepted_at, ended_at"

func (db *PgSosRepository) CreateEvent(params CreateEventParams) (SosEvent, error) {
	res := db.conn.QueryRow(
		"INSERT INTO sos_events (id, station_id, station_name, status, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING "+eventColumns,
		params.Id,
		params.StationId,
		params.StationName,
		StatusPending,
		time.Now().UTC(),
	)

	return scanEvent(res)
}

func (db *PgSosRepository) GetEventById(id string) (SosEvent, error) {
	row := db.conn.QueryRow(
		"SELECT "+eventColumns+" FROM sos_events WHERE id = $1 LIMIT 1",
		id,
	)

	return scanEvent(row)
}

// AcceptEvent is the single compare-and-set that arbitrates racing admins:
// the WHERE clause only matches while the row is still pending, so exactly
// one concurrent caller can ever see an affected row count of one.
func (db *PgSosRepository) AcceptEvent(id, acceptedBy string, acceptedAt time.Time) (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE sos_events SET status = $3, accepted_by = $4, accepted_at = $5 "+
			"WHERE id = $1 AND status = $2",
		id,
		StatusPending,
		StatusAccepted,
		acceptedBy,
		acceptedAt,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgSosRepository) EndEvent(id string, endedAt time.Time) (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE sos_events SET status = $2, ended_at = $3 "+
			"WHERE id = $1 AND status <> $2",
		id,
		StatusEnded,
		endedAt,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgSosRepository) ListEventsByStatus(statuses []string, oldestFirst bool, limit int) ([]SosEvent, error) {
	order := "DESC"
	if oldestFirst {
		order = "ASC"
	}

	query := fmt.Sprintf(
		"SELECT %s FROM sos_events WHERE status = ANY($1) ORDER BY created_at %s",
		eventColumns, order,
	)
	args := []any{pq.Array(statuses)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events = make([]SosEvent, 0)
	for rows.Next() {
		var e SosEvent
		if err = rows.Scan(
			&e.Id,
			&e.StationId,
			&e.StationName,
			&e.Status,
			&e.AcceptedBy,
			&e.CreatedAt,
			&e.AcceptedAt,
			&e.EndedAt,
		); err != nil {
			break
		}

		events = append(events, e)
	}

	return events, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (SosEvent, error) {
	var e SosEvent
	err := row.Scan(
		&e.Id,
		&e.StationId,
		&e.StationName,
		&e.Status,
		&e.AcceptedBy,
		&e.CreatedAt,
		&e.AcceptedAt,
		&e.EndedAt,
	)

	return e, err
}
