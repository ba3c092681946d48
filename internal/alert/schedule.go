package alert

import (
	"time"

	"github.com/sitewatch/sitewatch/internal/tz"
)

// nextNotifyAt implements spec.md §4.7's next(downStart, now, tz)
// escalation-ladder calculation. now doubles as the "lastSent" instant:
// every call site passes the instant the notification being scheduled was
// (or will be) sent.
func nextNotifyAt(downStart, now time.Time, loc *time.Location, cfg Config) time.Time {
	age := now.Sub(downStart)

	switch {
	case age < 24*time.Hour:
		return now.Add(time.Duration(cfg.RepeatEverySecondsUnder24h) * time.Second)
	case age < time.Duration(cfg.DailyAfterHours)*time.Hour:
		return now.Add(time.Duration(cfg.RepeatEverySeconds24hTo72h) * time.Second)
	default:
		local := tz.ToLocal(now, loc)
		dailyLocal := time.Date(local.Year(), local.Month(), local.Day(),
			cfg.DailyHourLocal, cfg.DailyMinuteLocal, 0, 0, loc)
		dailyUTC := tz.ToUTC(dailyLocal, loc)
		if !dailyUTC.After(now) {
			dailyUTC = dailyUTC.AddDate(0, 0, 1)
		}
		return dailyUTC
	}
}
