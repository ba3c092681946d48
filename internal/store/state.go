package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// LoadStates loads TargetState rows for a set of target ids in one query
// (spec.md §4.5 step 1). Target ids absent from the result have no prior
// state (first Check ever persisted for that target).
func (s *Store) LoadStates(ctx context.Context, tx *sql.Tx, targetIDs []string) (map[string]*TargetState, error) {
	out := make(map[string]*TargetState, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(targetIDs))
	args := make([]any, len(targetIDs))
	for i, id := range targetIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `
		SELECT target_id, is_up, last_check_utc, state_since_utc, last_change_utc, consecutive_failures,
		       last_summary, last_final_url, last_used_ip, last_detected_login_type, login_detected_last,
		       login_detected_ever, down_first_notified_utc, last_notified_utc, next_notify_utc,
		       recovered_due_utc, recovered_notified_utc
		FROM state WHERE target_id IN (` + strings.Join(placeholders, ",") + `)`

	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, args...)
	} else {
		rows, err = s.readDB.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan state: %w", err)
		}
		out[st.TargetID] = st
	}
	return out, rows.Err()
}

// GetState loads a single target's state, or nil if none exists yet.
func (s *Store) GetState(ctx context.Context, targetID string) (*TargetState, error) {
	states, err := s.LoadStates(ctx, nil, []string{targetID})
	if err != nil {
		return nil, err
	}
	return states[targetID], nil
}

func scanState(r rowScanner) (*TargetState, error) {
	var st TargetState
	var lastCheck, stateSince, lastChange string
	var usedIP, loginType sql.NullString
	var downFirst, lastNotified, nextNotify, recoveredDue, recoveredNotified sql.NullString

	if err := r.Scan(&st.TargetID, &st.IsUp, &lastCheck, &stateSince, &lastChange, &st.ConsecutiveFailures,
		&st.LastSummary, &st.LastFinalURL, &usedIP, &loginType, &st.LoginDetectedLast,
		&st.LoginDetectedEver, &downFirst, &lastNotified, &nextNotify,
		&recoveredDue, &recoveredNotified); err != nil {
		return nil, err
	}

	var err error
	if st.LastCheckUtc, err = parseTime(lastCheck); err != nil {
		return nil, err
	}
	if st.StateSinceUtc, err = parseTime(stateSince); err != nil {
		return nil, err
	}
	if st.LastChangeUtc, err = parseTime(lastChange); err != nil {
		return nil, err
	}
	if usedIP.Valid {
		v := usedIP.String
		st.LastUsedIP = &v
	}
	if loginType.Valid {
		v := loginType.String
		st.LastDetectedLoginType = &v
	}
	if st.DownFirstNotifiedUtc, err = parseTimePtr(downFirst); err != nil {
		return nil, err
	}
	if st.LastNotifiedUtc, err = parseTimePtr(lastNotified); err != nil {
		return nil, err
	}
	if st.NextNotifyUtc, err = parseTimePtr(nextNotify); err != nil {
		return nil, err
	}
	if st.RecoveredDueUtc, err = parseTimePtr(recoveredDue); err != nil {
		return nil, err
	}
	if st.RecoveredNotifiedUtc, err = parseTimePtr(recoveredNotified); err != nil {
		return nil, err
	}
	return &st, nil
}

// UpsertState writes st, replacing any prior row for the same target id.
// Callers (internal/persist, internal/alert) are responsible for computing
// the correct field values per spec.md §4.5/§4.7; this is a dumb write.
func (s *Store) UpsertState(ctx context.Context, tx *sql.Tx, st *TargetState) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO state (target_id, is_up, last_check_utc, state_since_utc, last_change_utc,
			consecutive_failures, last_summary, last_final_url, last_used_ip, last_detected_login_type,
			login_detected_last, login_detected_ever, down_first_notified_utc, last_notified_utc,
			next_notify_utc, recovered_due_utc, recovered_notified_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			is_up = excluded.is_up,
			last_check_utc = excluded.last_check_utc,
			state_since_utc = excluded.state_since_utc,
			last_change_utc = excluded.last_change_utc,
			consecutive_failures = excluded.consecutive_failures,
			last_summary = excluded.last_summary,
			last_final_url = excluded.last_final_url,
			last_used_ip = excluded.last_used_ip,
			last_detected_login_type = excluded.last_detected_login_type,
			login_detected_last = excluded.login_detected_last,
			login_detected_ever = excluded.login_detected_ever,
			down_first_notified_utc = excluded.down_first_notified_utc,
			last_notified_utc = excluded.last_notified_utc,
			next_notify_utc = excluded.next_notify_utc,
			recovered_due_utc = excluded.recovered_due_utc,
			recovered_notified_utc = excluded.recovered_notified_utc`,
		st.TargetID, st.IsUp, formatTime(st.LastCheckUtc), formatTime(st.StateSinceUtc), formatTime(st.LastChangeUtc),
		st.ConsecutiveFailures, st.LastSummary, st.LastFinalURL, st.LastUsedIP, st.LastDetectedLoginType,
		st.LoginDetectedLast, st.LoginDetectedEver, formatTimePtr(st.DownFirstNotifiedUtc), formatTimePtr(st.LastNotifiedUtc),
		formatTimePtr(st.NextNotifyUtc), formatTimePtr(st.RecoveredDueUtc), formatTimePtr(st.RecoveredNotifiedUtc))
	if err != nil {
		return fmt.Errorf("store: upsert state for target %s: %w", st.TargetID, err)
	}
	return nil
}
