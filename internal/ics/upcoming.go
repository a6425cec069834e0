package ics

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "remindd/internal/log"
	"remindd/internal/model"
)

const defaultMaxOccurrencesPerEvent = 1000

// UpcomingConfig controls reminder-window expansion.
type UpcomingConfig struct {
	// Now is the poll instant the window is anchored to.
	Now time.Time

	// Window is the reminder lookahead W. An occurrence qualifies iff
	// 0 < start - Now <= Window: events already started (or starting this
	// exact instant) are excluded, an event starting exactly W from now
	// is included.
	Window time.Duration

	// DisplayLocation is the timezone occurrences are converted into.
	// If nil, time.UTC is used.
	DisplayLocation *time.Location

	// MaxOccurrencesPerEvent caps recurrence expansion so a malformed
	// RRULE cannot produce an unbounded instance list.
	MaxOccurrencesPerEvent int
}

// inWindow reports whether a start instant falls inside the reminder window.
func (cfg UpcomingConfig) inWindow(start time.Time) bool {
	delta := start.Sub(cfg.Now)
	return delta > 0 && delta <= cfg.Window
}

// ExpandUpcoming takes the parsed events of one feed and returns the concrete
// occurrences whose start falls inside the reminder window anchored at
// cfg.Now. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//
// Results are converted into cfg.DisplayLocation and sorted by start time.
func ExpandUpcoming(events []ParsedEvent, cfg UpcomingConfig) []model.Occurrence {
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	out := make([]model.Occurrence, 0)

	for uid, baseEvents := range baseByUID {
		ov := overridesByUID[uid]
		for _, ev := range baseEvents {
			if ev.RawRRule == "" {
				out = append(out, upcomingSingle(ev, ov, cfg)...)
			} else {
				out = append(out, upcomingRecurring(ev, ov, cfg)...)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})

	return out
}

func upcomingSingle(ev ParsedEvent, overrides []ParsedEvent, cfg UpcomingConfig) []model.Occurrence {
	start := ev.Start
	end := ev.End

	// Apply any override whose RECURRENCE-ID matches this start.
	if o, ok := findOverrideForStart(overrides, start); ok {
		start = o.Start
		end = o.End
		ev = o
	}

	if !cfg.inWindow(start) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(ev, start, end, cfg.DisplayLocation)}
}

func upcomingRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg UpcomingConfig) []model.Occurrence {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}

	// Anchor the rule at the event's DTSTART.
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)

	// Apply EXDATEs, aligned with the event's own location.
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Query in the event's original location. Between is inclusive on both
	// ends; the strict lower bound is enforced by inWindow below.
	rangeStart := cfg.Now.In(ev.Start.Location())
	rangeEnd := cfg.Now.Add(cfg.Window).In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("recurrence expansion truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
	}

	out := make([]model.Occurrence, 0, len(occTimes))
	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			// All-day: [date 00:00, next day 00:00) in the event's timezone.
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = date
			occEnd = date.Add(24 * time.Hour)
		} else {
			// Preserve the original duration.
			occEnd = occStart.Add(ev.End.Sub(ev.Start))
		}

		instEv := ev
		instStart := occStart
		instEnd := occEnd

		// An override may move this instance, possibly out of the window;
		// the window check runs on the effective start.
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			instStart = o.Start
			instEnd = o.End
			instEv = o
		}

		if !cfg.inWindow(instStart) {
			continue
		}
		out = append(out, makeOccurrence(instEv, instStart, instEnd, cfg.DisplayLocation))
	}

	return out
}

// findOverrideForStart finds an override event whose RECURRENCE-ID matches
// the given base start with exact time equality.
func findOverrideForStart(overrides []ParsedEvent, baseStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(baseStart.Location()).Equal(baseStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence converts a (possibly overridden) ParsedEvent plus a specific
// start/end into a model.Occurrence normalized into displayLoc.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	endLocal := end.In(displayLoc)

	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: startLocal.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         endLocal,
	}
}
