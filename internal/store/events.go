package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// InsertEvent appends an Event row within tx.
func (s *Store) InsertEvent(ctx context.Context, tx *sql.Tx, e *Event) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	var targetID any
	if e.TargetID != nil {
		targetID = *e.TargetID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (event_id, instance_id, target_id, timestamp_utc, type, message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.InstanceID, targetID, formatTime(e.TimestampUtc), string(e.Type), e.Message)
	if err != nil {
		return fmt.Errorf("store: insert event for instance %s: %w", e.InstanceID, err)
	}
	return nil
}

// ListEvents returns instance events newest-first, paginated by offset/limit.
// Supplemented per SPEC_FULL.md §9: a read API useful to any eventual UI,
// even though the UI itself is out of scope.
func (s *Store) ListEvents(ctx context.Context, instanceID string, offset, limit int) ([]*Event, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT event_id, instance_id, target_id, timestamp_utc, type, message
		FROM events WHERE instance_id = ? ORDER BY timestamp_utc DESC LIMIT ? OFFSET ?`,
		instanceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list events for %s: %w", instanceID, err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var targetID sql.NullString
		var ts, typ string
		if err := rows.Scan(&e.EventID, &e.InstanceID, &targetID, &ts, &typ, &e.Message); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		e.TimestampUtc = t
		e.Type = EventType(typ)
		if targetID.Valid {
			v := targetID.String
			e.TargetID = &v
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
