package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// InsertCheck appends a Check row within tx. checkId is minted here if the
// caller left it empty.
func (s *Store) InsertCheck(ctx context.Context, tx *sql.Tx, c *Check) error {
	if c.CheckID == "" {
		c.CheckID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO checks (check_id, target_id, timestamp_utc, tcp_ok, http_ok, http_status_code,
			tcp_latency_ms, http_latency_ms, final_url, used_ip, detected_login_type, login_detected, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CheckID, c.TargetID, formatTime(c.TimestampUtc), c.TcpOk, c.HttpOk, c.HttpStatusCode,
		c.TcpLatencyMs, c.HttpLatencyMs, c.FinalURL, c.UsedIP, c.DetectedLoginType, c.LoginDetected, c.Summary)
	if err != nil {
		return fmt.Errorf("store: insert check for target %s: %w", c.TargetID, err)
	}
	return nil
}

// ListChecks returns the most recent limit Check rows for a target, newest
// first. Useful for diagnostics and tests; the core engine itself never
// re-reads Checks.
func (s *Store) ListChecks(ctx context.Context, targetID string, limit int) ([]*Check, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT check_id, target_id, timestamp_utc, tcp_ok, http_ok, http_status_code,
		       tcp_latency_ms, http_latency_ms, final_url, used_ip, detected_login_type, login_detected, summary
		FROM checks WHERE target_id = ? ORDER BY timestamp_utc DESC LIMIT ?`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list checks for %s: %w", targetID, err)
	}
	defer rows.Close()

	var out []*Check
	for rows.Next() {
		var c Check
		var ts string
		var usedIP, loginType sql.NullString
		var statusCode sql.NullInt64
		if err := rows.Scan(&c.CheckID, &c.TargetID, &ts, &c.TcpOk, &c.HttpOk, &statusCode,
			&c.TcpLatencyMs, &c.HttpLatencyMs, &c.FinalURL, &usedIP, &loginType, &c.LoginDetected, &c.Summary); err != nil {
			return nil, fmt.Errorf("store: scan check: %w", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		c.TimestampUtc = t
		if statusCode.Valid {
			v := int(statusCode.Int64)
			c.HttpStatusCode = &v
		}
		if usedIP.Valid {
			v := usedIP.String
			c.UsedIP = &v
		}
		if loginType.Valid {
			v := loginType.String
			c.DetectedLoginType = &v
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
