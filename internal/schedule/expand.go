package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/halcyon-intra/portal-events-api/internal/models"
)

// DefaultMaxOccurrences caps expansion when the caller passes no limit.
const DefaultMaxOccurrences = 366

// ErrOpenEndedRule is returned when a repeating rule carries neither a
// count nor an until instant.
var ErrOpenEndedRule = errors.New("recurrence rule needs a count or an until date")

// Span is one concrete (start, end) pair produced by expansion.
type Span struct {
	Start time.Time
	End   time.Time
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Expand turns a base occurrence and a recurrence rule into an ordered,
// finite sequence of spans. Every span keeps the base duration. Expansion is
// purely computational: the same input always yields the same output.
//
// Semantics per frequency:
//   - none: the base span alone, all other rule fields ignored.
//   - daily/monthly: step from the base start by Interval units; the until
//     bound is inclusive.
//   - weekly: weeks are Sunday-anchored; the weekday set defaults to the
//     base start's own weekday; candidates before the base start are never
//     emitted.
func Expand(base Span, rule models.RecurrenceRule, maxOccurrences int) ([]Span, error) {
	if !base.End.After(base.Start) {
		return nil, errors.New("occurrence end must be after start")
	}
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}

	if rule.Frequency == "" || rule.Frequency == models.FreqNone {
		return []Span{base}, nil
	}

	var freq rrule.Frequency
	switch rule.Frequency {
	case models.FreqDaily:
		freq = rrule.DAILY
	case models.FreqWeekly:
		freq = rrule.WEEKLY
	case models.FreqMonthly:
		freq = rrule.MONTHLY
	default:
		return nil, fmt.Errorf("unsupported frequency %q", rule.Frequency)
	}

	if rule.Count <= 0 && rule.Until == nil {
		return nil, ErrOpenEndedRule
	}

	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	opt := rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Dtstart:  base.Start,
		Wkst:     rrule.SU,
	}
	if rule.Count > 0 {
		opt.Count = rule.Count
	}
	if rule.Until != nil {
		opt.Until = *rule.Until
	}
	if rule.Frequency == models.FreqWeekly {
		for _, wd := range rule.Weekdays {
			rwd, ok := rruleWeekdays[wd]
			if !ok {
				return nil, fmt.Errorf("invalid weekday %d", wd)
			}
			opt.Byweekday = append(opt.Byweekday, rwd)
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule: %w", err)
	}

	starts := r.All()
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	duration := base.End.Sub(base.Start)
	spans := make([]Span, 0, len(starts))
	for _, start := range starts {
		spans = append(spans, Span{Start: start, End: start.Add(duration)})
	}
	return spans, nil
}
