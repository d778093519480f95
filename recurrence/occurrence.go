/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package recurrence

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/dispatch/model"
)

// NextOccurrences returns up to count ascending dates, on or after the
// calendar date of ref, on which rule is due. It never fails: a rule whose
// preferred day cannot be parsed for its frequency yields an empty slice and
// a warning so the caller can skip the order.
func NextOccurrences(ref time.Time, rule model.RecurrenceRule, count int) []time.Time {
	if count <= 0 {
		return []time.Time{}
	}

	frequency, ok := model.ParseFrequency(string(rule.Frequency))
	if !ok {
		logrus.WithFields(logrus.Fields{
			"frequency":     rule.Frequency,
			"preferred_day": rule.PreferredDay,
		}).Warn("unknown recurrence frequency, no occurrences computed")
		return []time.Time{}
	}

	pattern, err := ParsePattern(frequency, rule.PreferredDay)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"frequency":     frequency,
			"preferred_day": rule.PreferredDay,
		}).Warnf("unparseable preferred day: %v", err)
		return []time.Time{}
	}

	start := model.NormalizeDate(ref)
	switch {
	case frequency == model.FrequencyWeekly:
		return everyNDays(nextWeekday(start, pattern.Weekday), 7, count)
	case frequency == model.FrequencyBiweekly:
		return everyNDays(biweeklyStart(start, pattern.Weekday, rule.Anchor), 14, count)
	case pattern.Kind == PatternDayOfMonth:
		return monthly(start, count, func(year int, month time.Month) time.Time {
			return dayOfMonth(year, month, pattern.Day)
		})
	default:
		return monthly(start, count, func(year int, month time.Month) time.Time {
			return positionalWeekday(year, month, pattern.Position, pattern.Weekday)
		})
	}
}

// IsOccurrence reports whether the calendar date of date is itself an
// occurrence of rule.
func IsOccurrence(date time.Time, rule model.RecurrenceRule) bool {
	next := NextOccurrences(date, rule, 1)
	return len(next) == 1 && next[0].Equal(model.NormalizeDate(date))
}

const secondsPerDay = 24 * 60 * 60

// nextWeekday returns the first date on or after start falling on wd.
func nextWeekday(start time.Time, wd time.Weekday) time.Time {
	offset := (int(wd) - int(start.Weekday()) + 7) % 7
	return start.AddDate(0, 0, offset)
}

// biweeklyStart finds the first on-week candidate. A candidate is on when the
// number of whole weeks since the anchor's calendar date is even.
func biweeklyStart(start time.Time, wd time.Weekday, anchor time.Time) time.Time {
	first := nextWeekday(start, wd)
	if anchor.IsZero() {
		return first
	}
	if wholeWeeks(model.NormalizeDate(anchor), first)%2 != 0 {
		return first.AddDate(0, 0, 7)
	}
	return first
}

// wholeWeeks is floor((to - from) / 7 days) for normalized dates. Days are
// taken from Unix seconds so spans beyond the range of time.Duration stay
// exact.
func wholeWeeks(from, to time.Time) int {
	days := int((to.Unix() - from.Unix()) / secondsPerDay)
	weeks := days / 7
	if days < 0 && days%7 != 0 {
		weeks--
	}
	return weeks
}

func everyNDays(first time.Time, step, count int) []time.Time {
	dates := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		dates = append(dates, first.AddDate(0, 0, step*i))
	}
	return dates
}

// monthly walks month by month from start's month, skipping a computed date
// that precedes start. Only the first month can be skipped.
func monthly(start time.Time, count int, dateIn func(year int, month time.Month) time.Time) []time.Time {
	dates := make([]time.Time, 0, count)
	for offset := 0; len(dates) < count && offset <= count; offset++ {
		first := time.Date(start.Year(), start.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
		candidate := dateIn(first.Year(), first.Month())
		if candidate.Before(start) {
			continue
		}
		dates = append(dates, candidate)
	}
	return dates
}

// dayOfMonth clamps day to the last day of short months.
func dayOfMonth(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func positionalWeekday(year int, month time.Month, position int, wd time.Weekday) time.Time {
	if position == PositionLast {
		end := time.Date(year, month, daysIn(year, month), 0, 0, 0, 0, time.UTC)
		back := (int(end.Weekday()) - int(wd) + 7) % 7
		return end.AddDate(0, 0, -back)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return nextWeekday(first, wd).AddDate(0, 0, 7*(position-1))
}
