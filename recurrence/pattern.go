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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blnkfinance/dispatch/model"
)

var (
	ErrInvalidPattern   = errors.New("invalid preferred day pattern")
	ErrUnknownFrequency = errors.New("unknown frequency")
)

// PatternKind tells which form a preferred day was written in.
type PatternKind int

const (
	PatternWeekday PatternKind = iota
	PatternDayOfMonth
	PatternPositional
)

// PositionLast marks "last <weekday>" patterns.
const PositionLast = -1

// Pattern is a parsed preferred day.
//
// Supported forms:
//   - weekday name ("tuesday", "tue") for weekly and biweekly rules
//   - day of month ("1" to "31") for monthly rules
//   - "<position> <weekday>" ("first monday", "last friday") for monthly rules
type Pattern struct {
	Kind     PatternKind
	Weekday  time.Weekday
	Day      int
	Position int // 1 to 4, or PositionLast
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sun":       time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
}

var positions = map[string]int{
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"last":   PositionLast,
}

// ParseWeekday parses a weekday name, case-insensitively.
func ParseWeekday(value string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(value))]
	return wd, ok
}

// ParsePattern parses preferredDay for the given frequency. A pattern that is
// valid for one frequency is rejected for another.
func ParsePattern(frequency model.Frequency, preferredDay string) (Pattern, error) {
	raw := strings.ToLower(strings.TrimSpace(preferredDay))
	if raw == "" {
		return Pattern{}, fmt.Errorf("%w: empty", ErrInvalidPattern)
	}

	switch frequency {
	case model.FrequencyWeekly, model.FrequencyBiweekly:
		wd, ok := ParseWeekday(raw)
		if !ok {
			return Pattern{}, fmt.Errorf("%w: %q is not a weekday", ErrInvalidPattern, preferredDay)
		}
		return Pattern{Kind: PatternWeekday, Weekday: wd}, nil
	case model.FrequencyMonthly:
		if isDigits(raw) {
			day, err := strconv.Atoi(raw)
			if err != nil || day < 1 || day > 31 {
				return Pattern{}, fmt.Errorf("%w: day of month %q out of range", ErrInvalidPattern, preferredDay)
			}
			return Pattern{Kind: PatternDayOfMonth, Day: day}, nil
		}
		return parsePositional(raw, preferredDay)
	default:
		return Pattern{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}
}

func parsePositional(raw, original string) (Pattern, error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return Pattern{}, fmt.Errorf("%w: %q is neither a day of month nor a position and weekday", ErrInvalidPattern, original)
	}
	pos, ok := positions[parts[0]]
	if !ok {
		return Pattern{}, fmt.Errorf("%w: unknown position %q", ErrInvalidPattern, parts[0])
	}
	wd, ok := ParseWeekday(parts[1])
	if !ok {
		return Pattern{}, fmt.Errorf("%w: unknown weekday %q", ErrInvalidPattern, parts[1])
	}
	return Pattern{Kind: PatternPositional, Weekday: wd, Position: pos}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
