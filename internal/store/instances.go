package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetInstance reads a single Instance by id, or (nil, nil) if not found.
func (s *Store) GetInstance(ctx context.Context, instanceID string) (*Instance, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT instance_id, display_name, enabled, is_paused, paused_until_utc,
		       check_interval_seconds, concurrency_limit, time_zone_id, created_utc
		FROM instances WHERE instance_id = ?`, instanceID)
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get instance %s: %w", instanceID, err)
	}
	return inst, nil
}

// ListEnabledInstances returns all instances with enabled = true, used by
// the auto-start component at boot.
func (s *Store) ListEnabledInstances(ctx context.Context) ([]*Instance, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT instance_id, display_name, enabled, is_paused, paused_until_utc,
		       check_interval_seconds, concurrency_limit, time_zone_id, created_utc
		FROM instances WHERE enabled = 1 ORDER BY instance_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list enabled instances: %w", err)
	}
	defer rows.Close()

	var out []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// ListInstances returns all instances regardless of enabled state.
func (s *Store) ListInstances(ctx context.Context) ([]*Instance, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT instance_id, display_name, enabled, is_paused, paused_until_utc,
		       check_interval_seconds, concurrency_limit, time_zone_id, created_utc
		FROM instances ORDER BY instance_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list instances: %w", err)
	}
	defer rows.Close()

	var out []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(r rowScanner) (*Instance, error) {
	var inst Instance
	var pausedUntil, created sql.NullString
	if err := r.Scan(&inst.InstanceID, &inst.DisplayName, &inst.Enabled, &inst.IsPaused,
		&pausedUntil, &inst.CheckIntervalSeconds, &inst.ConcurrencyLimit, &inst.TimeZoneID, &created); err != nil {
		return nil, err
	}
	pu, err := parseTimePtr(pausedUntil)
	if err != nil {
		return nil, err
	}
	inst.PausedUntilUtc = pu
	if created.Valid {
		ct, err := parseTime(created.String)
		if err != nil {
			return nil, err
		}
		inst.CreatedUtc = ct
	}
	return &inst, nil
}

// PutInstance inserts or replaces an Instance row. Used by tests and by the
// optional seed-file bootstrap.
func (s *Store) PutInstance(ctx context.Context, tx *sql.Tx, inst *Instance) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO instances (instance_id, display_name, enabled, is_paused, paused_until_utc,
			check_interval_seconds, concurrency_limit, time_zone_id, created_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			display_name = excluded.display_name,
			enabled = excluded.enabled,
			is_paused = excluded.is_paused,
			paused_until_utc = excluded.paused_until_utc,
			check_interval_seconds = excluded.check_interval_seconds,
			concurrency_limit = excluded.concurrency_limit,
			time_zone_id = excluded.time_zone_id`,
		inst.InstanceID, inst.DisplayName, inst.Enabled, inst.IsPaused, formatTimePtr(inst.PausedUntilUtc),
		inst.CheckIntervalSeconds, inst.ConcurrencyLimit, inst.TimeZoneID, formatTime(inst.CreatedUtc))
	if err != nil {
		return fmt.Errorf("store: put instance %s: %w", inst.InstanceID, err)
	}
	return nil
}

// ListEnabledTargets returns a instance's enabled targets ordered by
// targetId, per spec.md §4.6 step 2.
func (s *Store) ListEnabledTargets(ctx context.Context, instanceID string) ([]*Target, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT target_id, instance_id, url, enabled, http_expected_status_min,
		       http_expected_status_max, login_rule
		FROM targets WHERE instance_id = ? AND enabled = 1 ORDER BY target_id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("store: list targets for %s: %w", instanceID, err)
	}
	defer rows.Close()

	var out []*Target
	for rows.Next() {
		var t Target
		var loginRule sql.NullString
		if err := rows.Scan(&t.TargetID, &t.InstanceID, &t.URL, &t.Enabled,
			&t.HTTPExpectedStatusMin, &t.HTTPExpectedStatusMax, &loginRule); err != nil {
			return nil, fmt.Errorf("store: scan target: %w", err)
		}
		if loginRule.Valid {
			v := loginRule.String
			t.LoginRule = &v
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// PutTarget inserts or replaces a Target row.
func (s *Store) PutTarget(ctx context.Context, tx *sql.Tx, t *Target) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO targets (target_id, instance_id, url, enabled, http_expected_status_min,
			http_expected_status_max, login_rule)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			url = excluded.url,
			enabled = excluded.enabled,
			http_expected_status_min = excluded.http_expected_status_min,
			http_expected_status_max = excluded.http_expected_status_max,
			login_rule = excluded.login_rule`,
		t.TargetID, t.InstanceID, t.URL, t.Enabled, t.HTTPExpectedStatusMin, t.HTTPExpectedStatusMax, t.LoginRule)
	if err != nil {
		return fmt.Errorf("store: put target %s: %w", t.TargetID, err)
	}
	return nil
}
