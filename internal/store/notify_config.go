package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetSmtpSettings returns an instance's SMTP config, or nil if unset.
func (s *Store) GetSmtpSettings(ctx context.Context, instanceID string) (*SmtpSettings, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT instance_id, host, port, security_mode, username, password_protected, from_address
		FROM smtp_settings WHERE instance_id = ?`, instanceID)
	var st SmtpSettings
	var username, pw sql.NullString
	var mode string
	err := row.Scan(&st.InstanceID, &st.Host, &st.Port, &mode, &username, &pw, &st.FromAddress)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get smtp settings for %s: %w", instanceID, err)
	}
	st.SecurityMode = SecurityMode(mode)
	if username.Valid {
		v := username.String
		st.Username = &v
	}
	if pw.Valid {
		v := pw.String
		st.PasswordProtected = &v
	}
	return &st, nil
}

// PutSmtpSettings inserts or replaces an instance's SMTP config.
func (s *Store) PutSmtpSettings(ctx context.Context, tx *sql.Tx, st *SmtpSettings) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO smtp_settings (instance_id, host, port, security_mode, username, password_protected, from_address)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			security_mode = excluded.security_mode,
			username = excluded.username,
			password_protected = excluded.password_protected,
			from_address = excluded.from_address`,
		st.InstanceID, st.Host, st.Port, string(st.SecurityMode), st.Username, st.PasswordProtected, st.FromAddress)
	if err != nil {
		return fmt.Errorf("store: put smtp settings for %s: %w", st.InstanceID, err)
	}
	return nil
}

// ListEnabledRecipients returns an instance's enabled email recipients.
func (s *Store) ListEnabledRecipients(ctx context.Context, instanceID string) ([]*Recipient, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT instance_id, email, enabled FROM recipients WHERE instance_id = ? AND enabled = 1 ORDER BY email`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("store: list recipients for %s: %w", instanceID, err)
	}
	defer rows.Close()

	var out []*Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.InstanceID, &r.Email, &r.Enabled); err != nil {
			return nil, fmt.Errorf("store: scan recipient: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// PutRecipient inserts or replaces a Recipient row.
func (s *Store) PutRecipient(ctx context.Context, tx *sql.Tx, r *Recipient) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO recipients (instance_id, email, enabled) VALUES (?, ?, ?)
		ON CONFLICT(instance_id, email) DO UPDATE SET enabled = excluded.enabled`,
		r.InstanceID, r.Email, r.Enabled)
	if err != nil {
		return fmt.Errorf("store: put recipient %s/%s: %w", r.InstanceID, r.Email, err)
	}
	return nil
}

// ListEnabledWebhooks returns an instance's enabled webhook endpoints.
func (s *Store) ListEnabledWebhooks(ctx context.Context, instanceID string) ([]*WebhookEndpoint, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT instance_id, url, enabled FROM webhook_endpoints WHERE instance_id = ? AND enabled = 1 ORDER BY url`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("store: list webhooks for %s: %w", instanceID, err)
	}
	defer rows.Close()

	var out []*WebhookEndpoint
	for rows.Next() {
		var w WebhookEndpoint
		if err := rows.Scan(&w.InstanceID, &w.URL, &w.Enabled); err != nil {
			return nil, fmt.Errorf("store: scan webhook: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// PutWebhook inserts or replaces a WebhookEndpoint row.
func (s *Store) PutWebhook(ctx context.Context, tx *sql.Tx, w *WebhookEndpoint) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO webhook_endpoints (instance_id, url, enabled) VALUES (?, ?, ?)
		ON CONFLICT(instance_id, url) DO UPDATE SET enabled = excluded.enabled`,
		w.InstanceID, w.URL, w.Enabled)
	if err != nil {
		return fmt.Errorf("store: put webhook %s/%s: %w", w.InstanceID, w.URL, err)
	}
	return nil
}
