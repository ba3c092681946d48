package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sitewatch/sitewatch/internal/notify"
	"github.com/sitewatch/sitewatch/internal/store"
	"github.com/sitewatch/sitewatch/internal/tz"
)

// send fans a notification for kind out across every configured channel,
// isolating per-recipient/per-endpoint failures from one another. It
// returns true once at least one recipient on either channel accepted
// the notification (spec.md §4.7's "delivered" test).
func (e *Evaluator) send(ctx context.Context, inst *store.Instance, target *store.Target, st *store.TargetState, kind store.EventType, loc *time.Location, chans *channels) bool {
	delivered := false

	if chans.emailConfigured() {
		subject, html, text := emailBody(inst, target, st, kind, loc)
		for _, r := range chans.recipients {
			msg := notify.EmailMessage{To: r.Email, Subject: subject, HTMLBody: html, TextBody: text}
			if err := e.Smtp.Send(ctx, *chans.smtp, chans.password, msg); err != nil {
				log.Printf("alert[%s/%s]: email to %s failed: %v", inst.InstanceID, target.TargetID, r.Email, err)
				e.observeNotification("email", "failure")
				continue
			}
			e.observeNotification("email", "success")
			delivered = true
		}
	}

	if chans.webhookConfigured() {
		payload := webhookPayload(inst, target, st, kind)
		for _, wh := range chans.webhooks {
			if err := e.Webhook.Send(ctx, wh.URL, payload); err != nil {
				log.Printf("alert[%s/%s]: webhook %s failed: %v", inst.InstanceID, target.TargetID, wh.URL, err)
				e.observeNotification("webhook", "failure")
				continue
			}
			e.observeNotification("webhook", "success")
			delivered = true
		}
	}

	return delivered
}

func (e *Evaluator) observeNotification(channel, result string) {
	if e.Metrics != nil {
		e.Metrics.ObserveNotification(channel, result)
	}
}

func webhookPayload(inst *store.Instance, target *store.Target, st *store.TargetState, kind store.EventType) notify.WebhookPayload {
	return notify.WebhookPayload{
		EventType:     string(kind),
		InstanceID:    inst.InstanceID,
		TargetID:      target.TargetID,
		URL:           target.URL,
		IsUp:          st.IsUp,
		StateSinceUtc: st.StateSinceUtc.Format(time.RFC3339),
		TimestampUtc:  time.Now().UTC().Format(time.RFC3339),
		Summary:       st.LastSummary,
	}
}

func emailBody(inst *store.Instance, target *store.Target, st *store.TargetState, kind store.EventType, loc *time.Location) (subject, html, text string) {
	now := time.Now().UTC()
	localNow := tz.ToLocal(now, loc)
	sinceLocal := tz.ToLocal(st.StateSinceUtc, loc)

	statusWord := "DOWN"
	if st.IsUp {
		statusWord = "RECOVERED"
	}
	subject = fmt.Sprintf("[%s] %s is %s", inst.DisplayName, target.URL, statusWord)

	text = fmt.Sprintf(
		"%s\n\nTarget: %s\nStatus: %s\nSince (local %s): %s\nSince (UTC): %s\nNow (local): %s\nNow (UTC): %s\nDetails: %s\n",
		subject, target.URL, statusWord, inst.TimeZoneID, sinceLocal.Format(time.RFC1123),
		st.StateSinceUtc.Format(time.RFC3339), localNow.Format(time.RFC1123), now.Format(time.RFC3339), st.LastSummary)

	html = fmt.Sprintf(`<html><body>
<h2>%s</h2>
<table>
<tr><td>Target</td><td>%s</td></tr>
<tr><td>Final URL</td><td>%s</td></tr>
<tr><td>Status</td><td>%s</td></tr>
<tr><td>Since (local, %s)</td><td>%s</td></tr>
<tr><td>Since (UTC)</td><td>%s</td></tr>
<tr><td>Evaluated (local)</td><td>%s</td></tr>
<tr><td>Evaluated (UTC)</td><td>%s</td></tr>
<tr><td>Last probe summary</td><td>%s</td></tr>
</table>
</body></html>`,
		subject, target.URL, st.LastFinalURL, statusWord, inst.TimeZoneID, sinceLocal.Format(time.RFC1123),
		st.StateSinceUtc.Format(time.RFC3339), localNow.Format(time.RFC1123), now.Format(time.RFC3339), st.LastSummary)

	return subject, html, text
}
