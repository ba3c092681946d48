package alert

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sitewatch/sitewatch/internal/notify"
	"github.com/sitewatch/sitewatch/internal/protector"
	"github.com/sitewatch/sitewatch/internal/storegate"
	"github.com/sitewatch/sitewatch/internal/store"
)

type fakeWebhook struct {
	mu    sync.Mutex
	fail  bool
	calls []notify.WebhookPayload
}

func (f *fakeWebhook) Send(ctx context.Context, endpointURL string, payload notify.WebhookPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, payload)
	if f.fail {
		return fmt.Errorf("simulated webhook failure")
	}
	return nil
}

type fakeSmtp struct {
	mu    sync.Mutex
	fail  bool
	calls []notify.EmailMessage
}

func (f *fakeSmtp) Send(ctx context.Context, settings store.SmtpSettings, password string, msg notify.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.fail {
		return fmt.Errorf("simulated smtp failure")
	}
	return nil
}

func defaultTestConfig() Config {
	return Config{
		DownAfterSeconds:           180,
		RecoveredAfterSeconds:      60,
		RepeatEverySecondsUnder24h: 1800,
		RepeatEverySeconds24hTo72h: 3600,
		DailyAfterHours:            72,
		DailyHourLocal:             10,
		DailyMinuteLocal:           0,
	}
}

func newTestEvaluator(t *testing.T) (*Evaluator, *fakeWebhook, *fakeSmtp) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	p, err := protector.Open(t.TempDir())
	if err != nil {
		t.Fatalf("protector.Open: %v", err)
	}

	wh := &fakeWebhook{}
	sm := &fakeSmtp{}

	return &Evaluator{
		Store:     s,
		Gate:      storegate.New(s.WriteDB()),
		Protector: p,
		Smtp:      sm,
		Webhook:   wh,
		Cfg:       defaultTestConfig(),
	}, wh, sm
}

func seedInstance(t *testing.T, e *Evaluator, instanceID string) *store.Instance {
	t.Helper()
	inst := &store.Instance{
		InstanceID:           instanceID,
		DisplayName:          "Acme",
		Enabled:              true,
		CheckIntervalSeconds: 60,
		ConcurrencyLimit:     2,
		TimeZoneID:           "America/New_York",
		CreatedUtc:           time.Now().UTC(),
	}
	tx, err := e.Store.WriteDB().Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Store.PutInstance(context.Background(), tx, inst); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return inst
}

func seedTarget(t *testing.T, e *Evaluator, instanceID, targetID string) *store.Target {
	t.Helper()
	tg := &store.Target{
		TargetID:              targetID,
		InstanceID:            instanceID,
		URL:                   "https://example.com/",
		Enabled:               true,
		HTTPExpectedStatusMin: 200,
		HTTPExpectedStatusMax: 399,
	}
	tx, err := e.Store.WriteDB().Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Store.PutTarget(context.Background(), tx, tg); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return tg
}

func seedState(t *testing.T, e *Evaluator, st *store.TargetState) {
	t.Helper()
	tx, err := e.Store.WriteDB().Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Store.UpsertState(context.Background(), tx, st); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func seedWebhook(t *testing.T, e *Evaluator, instanceID, url string) {
	t.Helper()
	tx, err := e.Store.WriteDB().Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Store.PutWebhook(context.Background(), tx, &store.WebhookEndpoint{InstanceID: instanceID, URL: url, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestNextNotifyAt_under24h(t *testing.T) {
	cfg := defaultTestConfig()
	downStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := downStart.Add(2 * time.Hour)
	got := nextNotifyAt(downStart, now, time.UTC, cfg)
	want := now.Add(1800 * time.Second)
	if !got.Equal(want) {
		t.Errorf("nextNotifyAt = %v, want %v", got, want)
	}
}

func TestNextNotifyAt_24hTo72h(t *testing.T) {
	cfg := defaultTestConfig()
	downStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := downStart.Add(30 * time.Hour)
	got := nextNotifyAt(downStart, now, time.UTC, cfg)
	want := now.Add(3600 * time.Second)
	if !got.Equal(want) {
		t.Errorf("nextNotifyAt = %v, want %v", got, want)
	}
}

func TestNextNotifyAt_dailyAfter72h(t *testing.T) {
	cfg := defaultTestConfig()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	downStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// 80 hours later, well past the 72h daily threshold.
	now := downStart.Add(80 * time.Hour)

	got := nextNotifyAt(downStart, now, loc, cfg)

	local := got.In(loc)
	if local.Hour() != 10 || local.Minute() != 0 {
		t.Errorf("expected 10:00 local, got %v", local)
	}
	if !got.After(now) {
		t.Errorf("expected the computed instant to be after now, got %v <= %v", got, now)
	}
}

func TestEvaluateDown_beforeThreshold_noop(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	seedState(t, e, &store.TargetState{
		TargetID:      "t1",
		IsUp:          false,
		LastCheckUtc:  now,
		StateSinceUtc: now.Add(-30 * time.Second),
		LastChangeUtc: now.Add(-30 * time.Second),
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	e.evaluateTarget(context.Background(), inst, target, time.UTC, e.loadChannels(context.Background(), inst))

	if len(wh.calls) != 0 {
		t.Errorf("expected no notification before downAfterSeconds elapses, got %d", len(wh.calls))
	}
}

func TestEvaluateDown_firstNotificationSentAndCommitted(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	seedState(t, e, &store.TargetState{
		TargetID:      "t1",
		IsUp:          false,
		LastCheckUtc:  now,
		StateSinceUtc: now.Add(-10 * time.Minute),
		LastChangeUtc: now.Add(-10 * time.Minute),
		LastSummary:   "TCP FAIL; HTTP FAIL",
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	if len(wh.calls) != 1 {
		t.Fatalf("expected 1 webhook call, got %d", len(wh.calls))
	}
	if wh.calls[0].EventType != string(store.EventAlertDown) {
		t.Errorf("EventType = %q, want AlertDown", wh.calls[0].EventType)
	}

	st, err := e.Store.GetState(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if st.DownFirstNotifiedUtc == nil || st.LastNotifiedUtc == nil || st.NextNotifyUtc == nil {
		t.Fatalf("expected bookkeeping fields set, got %+v", st)
	}

	events, err := e.Store.ListEvents(context.Background(), "acme", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != store.EventAlertDown {
		t.Errorf("expected 1 AlertDown event, got %+v", events)
	}
}

func TestEvaluateDown_repeatSentWhenDue(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	firstNotified := now.Add(-40 * time.Minute)
	pastDue := now.Add(-1 * time.Minute)
	seedState(t, e, &store.TargetState{
		TargetID:            "t1",
		IsUp:                false,
		LastCheckUtc:        now,
		StateSinceUtc:       now.Add(-2 * time.Hour),
		LastChangeUtc:       now.Add(-2 * time.Hour),
		DownFirstNotifiedUtc: &firstNotified,
		LastNotifiedUtc:      &firstNotified,
		NextNotifyUtc:        &pastDue,
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	if len(wh.calls) != 1 || wh.calls[0].EventType != string(store.EventAlertDownRepeat) {
		t.Fatalf("expected 1 AlertDownRepeat webhook call, got %+v", wh.calls)
	}
}

func TestEvaluateDown_notYetDueForRepeat(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	firstNotified := now.Add(-5 * time.Minute)
	future := now.Add(20 * time.Minute)
	seedState(t, e, &store.TargetState{
		TargetID:            "t1",
		IsUp:                false,
		LastCheckUtc:        now,
		StateSinceUtc:       now.Add(-2 * time.Hour),
		LastChangeUtc:       now.Add(-2 * time.Hour),
		DownFirstNotifiedUtc: &firstNotified,
		LastNotifiedUtc:      &firstNotified,
		NextNotifyUtc:        &future,
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	if len(wh.calls) != 0 {
		t.Errorf("expected no repeat before nextNotifyUtc, got %d calls", len(wh.calls))
	}
}

func TestEvaluateDown_deliveryFailureAppendsErrorEventAndLeavesStateUntouched(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	wh.fail = true
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	seedState(t, e, &store.TargetState{
		TargetID:      "t1",
		IsUp:          false,
		LastCheckUtc:  now,
		StateSinceUtc: now.Add(-10 * time.Minute),
		LastChangeUtc: now.Add(-10 * time.Minute),
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	st, err := e.Store.GetState(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if st.DownFirstNotifiedUtc != nil {
		t.Errorf("expected bookkeeping untouched on delivery failure, got %+v", st)
	}

	events, err := e.Store.ListEvents(context.Background(), "acme", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != store.EventError {
		t.Errorf("expected 1 Error event, got %+v", events)
	}
}

func TestEvaluateUp_noDownNotificationClearsRecoveryFields(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	due := now.Add(-1 * time.Minute)
	seedState(t, e, &store.TargetState{
		TargetID:        "t1",
		IsUp:            true,
		LastCheckUtc:    now,
		StateSinceUtc:   now,
		LastChangeUtc:   now,
		RecoveredDueUtc: &due,
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	if len(wh.calls) != 0 {
		t.Errorf("expected no notification when no DOWN was ever emitted, got %d", len(wh.calls))
	}

	st, err := e.Store.GetState(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if st.RecoveredDueUtc != nil {
		t.Errorf("expected RecoveredDueUtc cleared, got %+v", st.RecoveredDueUtc)
	}
}

func TestEvaluateUp_setsRecoveredDueUtcOnFirstObservation(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	firstNotified := now.Add(-1 * time.Hour)
	sinceUp := now.Add(-5 * time.Second)
	seedState(t, e, &store.TargetState{
		TargetID:            "t1",
		IsUp:                true,
		LastCheckUtc:        now,
		StateSinceUtc:       sinceUp,
		LastChangeUtc:       sinceUp,
		DownFirstNotifiedUtc: &firstNotified,
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	if len(wh.calls) != 0 {
		t.Errorf("expected no send yet (recoveredAfterSeconds not yet elapsed), got %d", len(wh.calls))
	}

	st, err := e.Store.GetState(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	wantDue := sinceUp.Add(time.Duration(e.Cfg.RecoveredAfterSeconds) * time.Second)
	if st.RecoveredDueUtc == nil || !st.RecoveredDueUtc.Equal(wantDue) {
		t.Errorf("RecoveredDueUtc = %v, want %v", st.RecoveredDueUtc, wantDue)
	}
}

func TestEvaluateUp_sendsRecoveredAndResetsBookkeeping(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	firstNotified := now.Add(-2 * time.Hour)
	lastNotified := now.Add(-90 * time.Minute)
	nextNotify := now.Add(10 * time.Minute)
	due := now.Add(-1 * time.Minute)
	sinceUp := now.Add(-2 * time.Minute)
	seedState(t, e, &store.TargetState{
		TargetID:            "t1",
		IsUp:                true,
		LastCheckUtc:        now,
		StateSinceUtc:       sinceUp,
		LastChangeUtc:       sinceUp,
		DownFirstNotifiedUtc: &firstNotified,
		LastNotifiedUtc:      &lastNotified,
		NextNotifyUtc:        &nextNotify,
		RecoveredDueUtc:      &due,
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	if len(wh.calls) != 1 || wh.calls[0].EventType != string(store.EventAlertRecovered) {
		t.Fatalf("expected 1 AlertRecovered call, got %+v", wh.calls)
	}

	st, err := e.Store.GetState(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if st.RecoveredNotifiedUtc == nil {
		t.Fatal("expected RecoveredNotifiedUtc set")
	}
	if st.DownFirstNotifiedUtc != nil || st.LastNotifiedUtc != nil || st.NextNotifyUtc != nil || st.RecoveredDueUtc != nil {
		t.Errorf("expected outage bookkeeping reset to nil, got %+v", st)
	}
}

func TestEvaluateUp_alreadyRecoveredNotifiedIsNoop(t *testing.T) {
	e, wh, _ := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	firstNotified := now.Add(-2 * time.Hour)
	recoveredNotified := now.Add(-1 * time.Hour)
	seedState(t, e, &store.TargetState{
		TargetID:             "t1",
		IsUp:                 true,
		LastCheckUtc:         now,
		StateSinceUtc:        now.Add(-90 * time.Minute),
		LastChangeUtc:        now.Add(-90 * time.Minute),
		DownFirstNotifiedUtc: &firstNotified,
		RecoveredNotifiedUtc: &recoveredNotified,
	})
	seedWebhook(t, e, "acme", "https://hooks.example.com/in")

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	if len(wh.calls) != 0 {
		t.Errorf("expected no re-send once recoveredNotifiedUtc is set, got %d", len(wh.calls))
	}
}

func TestChannels_skipsTargetWhenNoChannelConfigured(t *testing.T) {
	e, wh, sm := newTestEvaluator(t)
	inst := seedInstance(t, e, "acme")
	target := seedTarget(t, e, "acme", "t1")
	now := time.Now().UTC()
	seedState(t, e, &store.TargetState{
		TargetID:      "t1",
		IsUp:          false,
		LastCheckUtc:  now,
		StateSinceUtc: now.Add(-10 * time.Minute),
		LastChangeUtc: now.Add(-10 * time.Minute),
	})
	// No recipients, no webhook endpoints configured.

	chans := e.loadChannels(context.Background(), inst)
	e.evaluateTarget(context.Background(), inst, target, time.UTC, chans)

	if len(wh.calls) != 0 || len(sm.calls) != 0 {
		t.Error("expected no notification attempts when neither channel is configured")
	}

	st, err := e.Store.GetState(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if st.DownFirstNotifiedUtc != nil {
		t.Error("expected bookkeeping untouched when the target is skipped")
	}
}
