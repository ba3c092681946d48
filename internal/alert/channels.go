package alert

import (
	"context"
	"log"

	"github.com/sitewatch/sitewatch/internal/protector"
	"github.com/sitewatch/sitewatch/internal/store"
)

// channels is one instance's resolved notification configuration for the
// current tick, loaded once and reused across all of its targets.
type channels struct {
	smtp       *store.SmtpSettings
	password   string
	recipients []*store.Recipient
	webhooks   []*store.WebhookEndpoint

	// emailBlocked is set when the SMTP password failed to decrypt; email
	// is skipped for the whole instance this tick (spec.md §9).
	emailBlocked bool
}

func (e *Evaluator) loadChannels(ctx context.Context, inst *store.Instance) *channels {
	c := &channels{}

	smtp, err := e.Store.GetSmtpSettings(ctx, inst.InstanceID)
	if err != nil {
		log.Printf("alert[%s]: read smtp settings: %v", inst.InstanceID, err)
	} else {
		c.smtp = smtp
	}

	recipients, err := e.Store.ListEnabledRecipients(ctx, inst.InstanceID)
	if err != nil {
		log.Printf("alert[%s]: list recipients: %v", inst.InstanceID, err)
	} else {
		c.recipients = recipients
	}

	webhooks, err := e.Store.ListEnabledWebhooks(ctx, inst.InstanceID)
	if err != nil {
		log.Printf("alert[%s]: list webhooks: %v", inst.InstanceID, err)
	} else {
		c.webhooks = webhooks
	}

	if c.smtp != nil && c.smtp.PasswordProtected != nil {
		plain, err := e.Protector.Unprotect(protector.SmtpPasswordPurpose, *c.smtp.PasswordProtected)
		if err != nil {
			log.Printf("alert[%s]: smtp password decryption failed, email disabled this tick: %v", inst.InstanceID, err)
			c.emailBlocked = true
		} else {
			c.password = plain
		}
	}

	return c
}

// emailConfigured reports spec.md §4.7's email-configured test.
func (c *channels) emailConfigured() bool {
	if c.emailBlocked || c.smtp == nil {
		return false
	}
	return c.smtp.Host != "" && c.smtp.Port > 0 && c.smtp.FromAddress != "" && len(c.recipients) > 0
}

func (c *channels) webhookConfigured() bool {
	return len(c.webhooks) > 0
}

func (c *channels) configured() bool {
	return c.emailConfigured() || c.webhookConfigured()
}
