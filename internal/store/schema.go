package store

const schema = `
CREATE TABLE IF NOT EXISTS instances (
	instance_id            TEXT PRIMARY KEY,
	display_name           TEXT NOT NULL,
	enabled                INTEGER NOT NULL DEFAULT 1,
	is_paused              INTEGER NOT NULL DEFAULT 0,
	paused_until_utc       TEXT,
	check_interval_seconds INTEGER NOT NULL DEFAULT 60,
	concurrency_limit      INTEGER NOT NULL DEFAULT 4,
	time_zone_id           TEXT NOT NULL DEFAULT 'UTC',
	created_utc            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS targets (
	target_id                  TEXT PRIMARY KEY,
	instance_id                TEXT NOT NULL REFERENCES instances(instance_id),
	url                        TEXT NOT NULL,
	enabled                    INTEGER NOT NULL DEFAULT 1,
	http_expected_status_min   INTEGER NOT NULL DEFAULT 200,
	http_expected_status_max   INTEGER NOT NULL DEFAULT 399,
	login_rule                 TEXT
);
CREATE INDEX IF NOT EXISTS idx_targets_instance ON targets(instance_id);

CREATE TABLE IF NOT EXISTS checks (
	check_id            TEXT PRIMARY KEY,
	target_id            TEXT NOT NULL REFERENCES targets(target_id),
	timestamp_utc        TEXT NOT NULL,
	tcp_ok               INTEGER NOT NULL,
	http_ok              INTEGER NOT NULL,
	http_status_code     INTEGER,
	tcp_latency_ms       INTEGER NOT NULL,
	http_latency_ms      INTEGER NOT NULL,
	final_url            TEXT NOT NULL,
	used_ip              TEXT,
	detected_login_type  TEXT,
	login_detected       INTEGER NOT NULL,
	summary              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checks_target_ts ON checks(target_id, timestamp_utc);

CREATE TABLE IF NOT EXISTS state (
	target_id                TEXT PRIMARY KEY REFERENCES targets(target_id),
	is_up                     INTEGER NOT NULL,
	last_check_utc            TEXT NOT NULL,
	state_since_utc           TEXT NOT NULL,
	last_change_utc           TEXT NOT NULL,
	consecutive_failures      INTEGER NOT NULL,
	last_summary              TEXT NOT NULL,
	last_final_url            TEXT NOT NULL,
	last_used_ip              TEXT,
	last_detected_login_type  TEXT,
	login_detected_last       INTEGER NOT NULL,
	login_detected_ever       INTEGER NOT NULL,
	down_first_notified_utc   TEXT,
	last_notified_utc         TEXT,
	next_notify_utc           TEXT,
	recovered_due_utc         TEXT,
	recovered_notified_utc    TEXT
);

CREATE TABLE IF NOT EXISTS events (
	event_id      TEXT PRIMARY KEY,
	instance_id   TEXT NOT NULL REFERENCES instances(instance_id),
	target_id     TEXT,
	timestamp_utc TEXT NOT NULL,
	type          TEXT NOT NULL,
	message       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_instance_ts ON events(instance_id, timestamp_utc);

CREATE TABLE IF NOT EXISTS smtp_settings (
	instance_id        TEXT PRIMARY KEY REFERENCES instances(instance_id),
	host               TEXT NOT NULL,
	port               INTEGER NOT NULL,
	security_mode      TEXT NOT NULL,
	username           TEXT,
	password_protected TEXT,
	from_address       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recipients (
	instance_id TEXT NOT NULL REFERENCES instances(instance_id),
	email       TEXT NOT NULL,
	enabled     INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (instance_id, email)
);

CREATE TABLE IF NOT EXISTS webhook_endpoints (
	instance_id TEXT NOT NULL REFERENCES instances(instance_id),
	url         TEXT NOT NULL,
	enabled     INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (instance_id, url)
);
`

// migrations are forward-only and named with ascending timestamps, per
// spec.md §6. A single embedded migration covers the initial schema; later
// migrations would append additional entries here rather than editing this
// one.
var migrations = []struct {
	name string
	sql  string
}{
	{name: "20260101000000_init", sql: schema},
}
