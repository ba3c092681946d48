// Package persist batches one cycle's probe results into append-only
// Check rows and TargetState upserts (spec.md §4.5). Grounded on the
// teacher's internal/plex/epg.go (insertMetadataItem's batch-lookup-then-
// per-row-write shape, filterCols-style column presence handling) and
// internal/dvbdb.go's upsert-by-key shape, adapted from Plex's ad hoc
// schema and DVB registry merge semantics to the fixed Checks/State
// tables.
package persist

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sitewatch/sitewatch/internal/metrics"
	"github.com/sitewatch/sitewatch/internal/probe"
	"github.com/sitewatch/sitewatch/internal/storegate"
	"github.com/sitewatch/sitewatch/internal/store"
)

// ProbeOutcome pairs a Target id with its probe.Result and the timestamp
// the cycle captured it at.
type ProbeOutcome struct {
	TargetID string
	Result   probe.Result
	Ts       time.Time
}

// Persister commits one cycle's outcomes under the store gate.
type Persister struct {
	Store *store.Store
	Gate  *storegate.Gate

	// Metrics is optional; when set, each batch updates its collectors.
	Metrics *metrics.Registry
}

// New returns a Persister writing through gate against s.
func New(s *store.Store, gate *storegate.Gate) *Persister {
	return &Persister{Store: s, Gate: gate}
}

// Persist implements spec.md §4.5 steps 1-4: one transaction, a batched
// TargetState preload, a per-result Check insert, and a new/existing/
// flip-state TargetState upsert. On a non-transient store error it logs
// and drops the batch rather than blocking the scheduler.
func (p *Persister) Persist(ctx context.Context, outcomes []ProbeOutcome) {
	if len(outcomes) == 0 {
		return
	}

	targetIDs := make([]string, len(outcomes))
	for i, o := range outcomes {
		targetIDs[i] = o.TargetID
	}

	err := p.Gate.WithWriteLock(ctx, func(tx *sql.Tx) error {
		existing, err := p.Store.LoadStates(ctx, tx, targetIDs)
		if err != nil {
			return err
		}

		for _, o := range outcomes {
			check := checkFromResult(o.TargetID, o.Ts, o.Result)
			if err := p.Store.InsertCheck(ctx, tx, check); err != nil {
				return err
			}

			next := nextState(existing[o.TargetID], o.TargetID, o.Ts, o.Result)
			if err := p.Store.UpsertState(ctx, tx, next); err != nil {
				return err
			}
			if p.Metrics != nil {
				p.Metrics.SetTargetUp(o.TargetID, next.IsUp)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("persist: dropping batch of %d results: %v", len(outcomes), err)
		return
	}
	log.Printf("persist: committed %s checks", humanize.Comma(int64(len(outcomes))))
}

func checkFromResult(targetID string, ts time.Time, r probe.Result) *store.Check {
	return &store.Check{
		TargetID:          targetID,
		TimestampUtc:      ts,
		TcpOk:             r.TcpOk,
		HttpOk:            r.HttpOk,
		HttpStatusCode:    r.HttpStatusCode,
		TcpLatencyMs:      r.TcpLatencyMs,
		HttpLatencyMs:     r.HttpLatencyMs,
		FinalURL:          r.FinalURL,
		UsedIP:            r.UsedIP,
		DetectedLoginType: r.DetectedLoginType,
		LoginDetected:     r.LoginDetected,
		Summary:           r.Summary,
	}
}

// nextState implements spec.md §4.5 step 3's three branches: new state,
// existing state with isUp unchanged, existing state with isUp flipped.
func nextState(prev *store.TargetState, targetID string, ts time.Time, r probe.Result) *store.TargetState {
	isUp := r.TcpOk && r.HttpOk

	if prev == nil {
		st := &store.TargetState{
			TargetID:            targetID,
			IsUp:                isUp,
			LastCheckUtc:        ts,
			StateSinceUtc:       ts,
			LastChangeUtc:       ts,
			ConsecutiveFailures: failuresFor(isUp, 0, true),
			LastSummary:         r.Summary,
			LastFinalURL:        r.FinalURL,
			LastUsedIP:          r.UsedIP,
		}
		if r.HttpStatusCode != nil {
			st.LastDetectedLoginType = r.DetectedLoginType
			st.LoginDetectedLast = r.LoginDetected
			st.LoginDetectedEver = r.LoginDetected
		}
		return st
	}

	next := *prev
	next.LastCheckUtc = ts
	next.LastSummary = r.Summary
	if r.FinalURL != "" {
		next.LastFinalURL = r.FinalURL
	}
	if r.UsedIP != nil {
		next.LastUsedIP = r.UsedIP
	}

	// Login fields update only when httpStatusCode is non-null: transport
	// failures must not clobber last-known login state.
	if r.HttpStatusCode != nil {
		next.LastDetectedLoginType = r.DetectedLoginType
		next.LoginDetectedLast = r.LoginDetected
		next.LoginDetectedEver = prev.LoginDetectedEver || r.LoginDetected
	}

	flipped := isUp != prev.IsUp
	next.IsUp = isUp
	next.ConsecutiveFailures = failuresFor(isUp, prev.ConsecutiveFailures, flipped)
	if flipped {
		next.StateSinceUtc = ts
		next.LastChangeUtc = ts
	}
	return &next
}

// failuresFor computes consecutiveFailures per spec.md's invariant:
// consecutiveFailures == 0 iff isUp == true; otherwise it increments per
// consecutive down probe, resetting to 1 on a fresh down transition.
func failuresFor(isUp bool, prevFailures int, flippedOrNew bool) int {
	if isUp {
		return 0
	}
	if flippedOrNew {
		return 1
	}
	return prevFailures + 1
}
