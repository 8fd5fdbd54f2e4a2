package parking

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func makeZone() Zone {
	return Zone{
		Name:         "Filmwijk",
		Code:         "36044",
		HourlyRate:   0.25,
		MaxDailyRate: 1.00,
		Rules: []ScheduleRule{
			{Days: []int{0, 1, 2}, StartTime: "09:00", EndTime: "22:00"},
			{Days: []int{3, 4, 5}, StartTime: "09:00", EndTime: "24:00"},
			{Days: []int{6}, StartTime: "12:00", EndTime: "17:00"},
		},
	}
}

func TestZone_RuleForDay(t *testing.T) {
	zone := makeZone()

	tests := []struct {
		name      string
		date      time.Time
		wantStart string
		wantEnd   string
	}{
		{name: "monday", date: time.Date(2025, time.December, 15, 0, 0, 0, 0, time.Local), wantStart: "09:00", wantEnd: "22:00"},
		{name: "thursday", date: time.Date(2025, time.December, 18, 0, 0, 0, 0, time.Local), wantStart: "09:00", wantEnd: "24:00"},
		{name: "sunday", date: time.Date(2025, time.December, 21, 0, 0, 0, 0, time.Local), wantStart: "12:00", wantEnd: "17:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := zone.RuleForDay(tt.date)
			require.True(t, ok)
			assert.Equal(t, tt.wantStart, rule.StartTime)
			assert.Equal(t, tt.wantEnd, rule.EndTime)
		})
	}

	// every weekday matches at most one rule
	for day := 15; day < 22; day++ {
		var matches int
		weekday := weekdayIndex(time.Date(2025, time.December, day, 0, 0, 0, 0, time.Local))
		for _, rule := range zone.Rules {
			if rule.covers(weekday) {
				matches++
			}
		}
		assert.LessOrEqual(t, matches, 1)
	}
}

func TestZone_RuleForDay_Unregulated(t *testing.T) {
	zone := Zone{Rules: []ScheduleRule{{Days: []int{0}, StartTime: "09:00", EndTime: "18:00"}}}
	_, ok := zone.RuleForDay(time.Date(2025, time.December, 16, 0, 0, 0, 0, time.Local)) // Tuesday
	assert.False(t, ok)
}

func TestZone_EndOfPaidPeriod(t *testing.T) {
	zone := makeZone()
	monday := time.Date(2025, time.December, 15, 0, 0, 0, 0, time.Local)
	thursday := time.Date(2025, time.December, 18, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name   string
		date   time.Time
		offset int
		want   string
	}{
		{name: "24:00 maps to 23:59", date: thursday, offset: 0, want: "23:59"},
		{name: "24:00 with offset counts from midnight", date: thursday, offset: 60, want: "23:00"},
		{name: "regular end time", date: monday, offset: 0, want: "22:00"},
		{name: "regular end time with offset", date: monday, offset: 60, want: "21:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, zone.EndOfPaidPeriod(tt.date, tt.offset))
		})
	}
}

func TestZone_EndOfPaidPeriod_NoRule(t *testing.T) {
	zone := Zone{Rules: []ScheduleRule{{Days: []int{0}, StartTime: "09:00", EndTime: "18:00"}}}
	tuesday := time.Date(2025, time.December, 16, 0, 0, 0, 0, time.Local)
	assert.Equal(t, "23:59", zone.EndOfPaidPeriod(tuesday, 0))
}

func TestZone_WithinPaidHours(t *testing.T) {
	zone := makeZone()

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{name: "monday before closing", t: time.Date(2025, time.December, 15, 21, 59, 0, 0, time.Local), want: true},
		{name: "monday at closing", t: time.Date(2025, time.December, 15, 22, 0, 0, 0, time.Local), want: true},
		{name: "monday after closing", t: time.Date(2025, time.December, 15, 22, 1, 0, 0, time.Local), want: false},
		{name: "monday at opening", t: time.Date(2025, time.December, 15, 9, 0, 0, 0, time.Local), want: true},
		{name: "monday before opening", t: time.Date(2025, time.December, 15, 8, 59, 0, 0, time.Local), want: false},
		{name: "thursday just before midnight", t: time.Date(2025, time.December, 18, 23, 59, 59, 0, time.Local), want: true},
		{name: "sunday morning", t: time.Date(2025, time.December, 21, 11, 0, 0, 0, time.Local), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, zone.WithinPaidHours(tt.t))
		})
	}
}
