package parking

import (
	"fmt"
	"github.com/clambin/go-common/set"
	"time"
)

// endOfDay is the sentinel end time meaning "until midnight". The portal's
// submission form cannot express it, so it maps to 23:59 on output.
const endOfDay = "24:00"

// ScheduleRule is one paid-hours window: the weekdays it covers (0=Monday ..
// 6=Sunday) and the start and end clock times ("HH:MM", 24h). An end time of
// "24:00" means the window runs until midnight.
type ScheduleRule struct {
	Days      []int  `yaml:"days"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

func (r ScheduleRule) covers(weekday int) bool {
	return set.New(r.Days...).Contains(weekday)
}

// Zone is a geographic parking area with its own paid-hours schedule and rate.
// Loaded once from configuration and immutable thereafter.
type Zone struct {
	Name         string         `yaml:"name"`
	Code         string         `yaml:"code"`
	Rules        []ScheduleRule `yaml:"rules"`
	HourlyRate   float64        `yaml:"hourly_rate"`
	MaxDailyRate float64        `yaml:"max_daily_rate"`
}

// RuleForDay returns the schedule rule covering date's weekday. ok is false if
// no rule applies, i.e. the zone is unregulated that day.
func (z Zone) RuleForDay(date time.Time) (ScheduleRule, bool) {
	weekday := weekdayIndex(date)
	for _, rule := range z.Rules {
		if rule.covers(weekday) {
			return rule, true
		}
	}
	return ScheduleRule{}, false
}

// EndOfPaidPeriod resolves the "all day" end time for date as an "HH:MM"
// string, offsetMinutes earlier than the end of the paid window. With a zero
// offset a "24:00" rule yields "23:59", since the portal rejects 24:00. A
// non-zero offset instead subtracts from midnight of the following day, so 60
// minutes on a "24:00" rule yields "23:00". Days without a rule fall back to
// "23:59".
func (z Zone) EndOfPaidPeriod(date time.Time, offsetMinutes int) string {
	rule, ok := z.RuleForDay(date)
	if !ok {
		return "23:59"
	}

	if rule.EndTime == endOfDay {
		if offsetMinutes == 0 {
			return "23:59"
		}
		midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).AddDate(0, 0, 1)
		return midnight.Add(-time.Duration(offsetMinutes) * time.Minute).Format("15:04")
	}

	end, err := time.Parse("15:04", rule.EndTime)
	if err != nil {
		return "23:59"
	}
	return end.Add(-time.Duration(offsetMinutes) * time.Minute).Format("15:04")
}

// WithinPaidHours reports whether t falls inside the paid window of its
// weekday, boundaries included. False if no rule applies.
func (z Zone) WithinPaidHours(t time.Time) bool {
	rule, ok := z.RuleForDay(t)
	if !ok {
		return false
	}

	start, err := clockSeconds(rule.StartTime)
	if err != nil {
		return false
	}
	var end int
	if rule.EndTime == endOfDay {
		end = 23*3600 + 59*60 + 59
	} else {
		if end, err = clockSeconds(rule.EndTime); err != nil {
			return false
		}
	}

	current := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return current >= start && current <= end
}

// weekdayIndex maps Go's Sunday-based weekday to the configuration's
// Monday-based indices (0=Monday .. 6=Sunday).
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func clockSeconds(value string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return hour*3600 + minute*60, nil
}
