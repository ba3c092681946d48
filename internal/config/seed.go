package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sitewatch/sitewatch/internal/store"
)

// SeedDocument is the optional first-run bootstrap file named by SeedFile:
// a flat list of instances, each carrying its own targets and recipients,
// expressed in YAML rather than the store's normalized tables.
type SeedDocument struct {
	Instances []SeedInstance `yaml:"instances"`
}

type SeedInstance struct {
	InstanceID           string           `yaml:"id"`
	DisplayName          string           `yaml:"displayName"`
	TimeZoneID           string           `yaml:"timeZone"`
	CheckIntervalSeconds int              `yaml:"checkIntervalSeconds"`
	ConcurrencyLimit     int              `yaml:"concurrencyLimit"`
	Targets              []SeedTarget     `yaml:"targets"`
	Recipients           []string         `yaml:"recipients"`
	Webhooks             []string         `yaml:"webhooks"`
}

type SeedTarget struct {
	ID        string `yaml:"id"`
	URL       string `yaml:"url"`
	LoginRule string `yaml:"loginRule"`
}

// LoadSeedFile reads and parses path as a SeedDocument.
func LoadSeedFile(path string) (*SeedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var doc SeedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &doc, nil
}

// Seed applies doc to s: one write transaction, skipped entirely if the
// store already has at least one instance and force is false (the default
// first-run-only bootstrap semantics).
func Seed(ctx context.Context, s *store.Store, doc *SeedDocument, force bool, timeout time.Duration) error {
	if !force {
		existing, err := s.ListInstances(ctx)
		if err != nil {
			return fmt.Errorf("check existing instances: %w", err)
		}
		if len(existing) > 0 {
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := s.WriteDB().Begin()
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, inst := range doc.Instances {
		if err := seedOneInstance(ctx, s, tx, inst, now); err != nil {
			return fmt.Errorf("seed instance %q: %w", inst.InstanceID, err)
		}
	}

	return tx.Commit()
}

func seedOneInstance(ctx context.Context, s *store.Store, tx *sql.Tx, si SeedInstance, now time.Time) error {
	interval := si.CheckIntervalSeconds
	if interval <= 0 {
		interval = 60
	}
	concurrency := si.ConcurrencyLimit
	if concurrency <= 0 {
		concurrency = 4
	}
	tz := si.TimeZoneID
	if tz == "" {
		tz = "UTC"
	}

	if err := s.PutInstance(ctx, tx, &store.Instance{
		InstanceID:           si.InstanceID,
		DisplayName:          si.DisplayName,
		Enabled:              true,
		CheckIntervalSeconds: interval,
		ConcurrencyLimit:     concurrency,
		TimeZoneID:           tz,
		CreatedUtc:           now,
	}); err != nil {
		return err
	}

	for _, t := range si.Targets {
		var loginRule *string
		if t.LoginRule != "" {
			rule := t.LoginRule
			loginRule = &rule
		}
		if err := s.PutTarget(ctx, tx, &store.Target{
			TargetID:              t.ID,
			InstanceID:            si.InstanceID,
			URL:                   t.URL,
			Enabled:               true,
			HTTPExpectedStatusMin: 200,
			HTTPExpectedStatusMax: 399,
			LoginRule:             loginRule,
		}); err != nil {
			return err
		}
	}

	for _, email := range si.Recipients {
		if err := s.PutRecipient(ctx, tx, &store.Recipient{InstanceID: si.InstanceID, Email: email, Enabled: true}); err != nil {
			return err
		}
	}

	for _, url := range si.Webhooks {
		if err := s.PutWebhook(ctx, tx, &store.WebhookEndpoint{InstanceID: si.InstanceID, URL: url, Enabled: true}); err != nil {
			return err
		}
	}

	return nil
}
