// Package tz resolves IANA time zone identifiers to *time.Location,
// falling back through a small Windows-ID alias table and finally to UTC
// (spec.md §4.2). No teacher package performs timezone mapping; the
// embedded-table-with-fallback shape follows internal/dvbdb's
// lookup-table-with-fallback pattern (try direct lookup, then an alias
// table, then a safe default), generalized from DVB broadcaster names to
// zone identifiers.
package tz

import (
	"log"
	"time"
)

// Resolve maps id to a concrete *time.Location:
//  1. direct time.LoadLocation(id) (IANA on POSIX, Windows IDs on Windows).
//  2. on failure, map Windows ID -> IANA and retry.
//  3. on failure, fall back to UTC with a logged warning.
func Resolve(id string) *time.Location {
	if id == "" {
		return time.UTC
	}
	if loc, err := time.LoadLocation(id); err == nil {
		return loc
	}
	if iana, ok := windowsToIANA[id]; ok {
		if loc, err := time.LoadLocation(iana); err == nil {
			return loc
		}
	}
	log.Printf("tz: unresolvable zone id %q, falling back to UTC", id)
	return time.UTC
}

// ToLocal converts a UTC instant to the wall-clock time in loc.
func ToLocal(utc time.Time, loc *time.Location) time.Time {
	return utc.In(loc)
}

// ToUTC treats local as an unspecified-kind wall-clock time in loc and
// converts it to the equivalent UTC instant.
func ToUTC(local time.Time, loc *time.Location) time.Time {
	wall := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), loc)
	return wall.UTC()
}

// windowsToIANA is a small embedded alias table covering the Windows zone
// ids most likely to appear in operator-entered configuration. It is not
// exhaustive; Resolve falls back to UTC for anything it misses.
var windowsToIANA = map[string]string{
	"Eastern Standard Time":     "America/New_York",
	"Central Standard Time":     "America/Chicago",
	"Mountain Standard Time":    "America/Denver",
	"Pacific Standard Time":     "America/Los_Angeles",
	"UTC":                       "Etc/UTC",
	"GMT Standard Time":         "Europe/London",
	"W. Europe Standard Time":   "Europe/Berlin",
	"Central Europe Standard Time": "Europe/Warsaw",
	"Romance Standard Time":     "Europe/Paris",
	"India Standard Time":       "Asia/Kolkata",
	"China Standard Time":       "Asia/Shanghai",
	"Tokyo Standard Time":       "Asia/Tokyo",
	"AUS Eastern Standard Time": "Australia/Sydney",
}
