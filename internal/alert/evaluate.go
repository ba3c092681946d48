package alert

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/sitewatch/sitewatch/internal/store"
)

// evaluateTarget implements spec.md §4.7's DOWN path / UP path branching
// for one target, against a single read of its TargetState.
func (e *Evaluator) evaluateTarget(ctx context.Context, inst *store.Instance, target *store.Target, loc *time.Location, chans *channels) {
	st, err := e.Store.GetState(ctx, target.TargetID)
	if err != nil {
		log.Printf("alert[%s/%s]: read state: %v", inst.InstanceID, target.TargetID, err)
		return
	}
	if st == nil {
		return
	}

	now := time.Now().UTC()
	if st.IsUp {
		e.evaluateUp(ctx, inst, target, st, loc, chans, now)
		return
	}
	e.evaluateDown(ctx, inst, target, st, loc, chans, now)
}

func (e *Evaluator) evaluateDown(ctx context.Context, inst *store.Instance, target *store.Target, st *store.TargetState, loc *time.Location, chans *channels, now time.Time) {
	downStart := st.StateSinceUtc
	downAge := now.Sub(downStart)

	switch {
	case st.DownFirstNotifiedUtc == nil:
		if downAge < time.Duration(e.Cfg.DownAfterSeconds)*time.Second {
			return
		}
		if !chans.configured() {
			return
		}
		e.sendAndCommit(ctx, inst, target, st, store.EventAlertDown, loc, chans, now, func(fresh *store.TargetState) {
			fresh.DownFirstNotifiedUtc = timePtr(now)
			fresh.LastNotifiedUtc = timePtr(now)
			next := nextNotifyAt(downStart, now, loc, e.Cfg)
			fresh.NextNotifyUtc = &next
		})

	case st.NextNotifyUtc != nil && !now.Before(*st.NextNotifyUtc):
		if !chans.configured() {
			return
		}
		e.sendAndCommit(ctx, inst, target, st, store.EventAlertDownRepeat, loc, chans, now, func(fresh *store.TargetState) {
			fresh.LastNotifiedUtc = timePtr(now)
			next := nextNotifyAt(downStart, now, loc, e.Cfg)
			fresh.NextNotifyUtc = &next
		})
	}
}

func (e *Evaluator) evaluateUp(ctx context.Context, inst *store.Instance, target *store.Target, st *store.TargetState, loc *time.Location, chans *channels, now time.Time) {
	if st.DownFirstNotifiedUtc == nil {
		if st.RecoveredDueUtc != nil || st.RecoveredNotifiedUtc != nil {
			e.commit(ctx, inst.InstanceID, target.TargetID, func(fresh *store.TargetState) {
				fresh.RecoveredDueUtc = nil
				fresh.RecoveredNotifiedUtc = nil
			}, nil)
		}
		return
	}
	if st.RecoveredNotifiedUtc != nil {
		return
	}
	if st.RecoveredDueUtc == nil {
		due := st.StateSinceUtc.Add(time.Duration(e.Cfg.RecoveredAfterSeconds) * time.Second)
		e.commit(ctx, inst.InstanceID, target.TargetID, func(fresh *store.TargetState) {
			fresh.RecoveredDueUtc = &due
		}, nil)
		return
	}
	if now.Before(*st.RecoveredDueUtc) {
		return
	}
	if !chans.configured() {
		return
	}

	e.sendAndCommit(ctx, inst, target, st, store.EventAlertRecovered, loc, chans, now, func(fresh *store.TargetState) {
		fresh.RecoveredNotifiedUtc = timePtr(now)
		fresh.DownFirstNotifiedUtc = nil
		fresh.LastNotifiedUtc = nil
		fresh.NextNotifyUtc = nil
		fresh.RecoveredDueUtc = nil
	})
}

// sendAndCommit sends kind across every configured channel; on delivery it
// applies onSuccess to a freshly-reloaded TargetState and appends a kind
// Event, otherwise it leaves state untouched and appends an Error Event
// (retried next tick), exactly per spec.md §4.7.
func (e *Evaluator) sendAndCommit(ctx context.Context, inst *store.Instance, target *store.Target, st *store.TargetState, kind store.EventType, loc *time.Location, chans *channels, now time.Time, onSuccess func(*store.TargetState)) {
	delivered := e.send(ctx, inst, target, st, kind, loc, chans)

	if delivered {
		e.commit(ctx, inst.InstanceID, target.TargetID, onSuccess, &store.Event{
			TargetID:     &target.TargetID,
			TimestampUtc: now,
			Type:         kind,
			Message:      target.URL + ": " + st.LastSummary,
		})
		return
	}

	e.commit(ctx, inst.InstanceID, target.TargetID, nil, &store.Event{
		TargetID:     &target.TargetID,
		TimestampUtc: now,
		Type:         store.EventError,
		Message:      target.URL + ": failed to deliver " + string(kind),
	})
}

// commit applies mutate to the target's freshly-reloaded TargetState and
// upserts it (mutate may be nil to skip the state write entirely), then
// appends ev if non-nil. Reloading inside the write-locked transaction
// avoids clobbering fields the Persister owns (isUp, consecutiveFailures,
// ...) with a stale snapshot taken before the send.
func (e *Evaluator) commit(ctx context.Context, instanceID, targetID string, mutate func(*store.TargetState), ev *store.Event) {
	err := e.Gate.WithWriteLock(ctx, func(tx *sql.Tx) error {
		if mutate != nil {
			states, err := e.Store.LoadStates(ctx, tx, []string{targetID})
			if err != nil {
				return err
			}
			if fresh, ok := states[targetID]; ok {
				mutate(fresh)
				if err := e.Store.UpsertState(ctx, tx, fresh); err != nil {
					return err
				}
			}
		}
		if ev != nil {
			ev.InstanceID = instanceID
			if err := e.Store.InsertEvent(ctx, tx, ev); err != nil {
				return err
			}
			if e.Metrics != nil {
				e.Metrics.ObserveEvent(string(ev.Type))
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("alert[%s/%s]: commit: %v", instanceID, targetID, err)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
