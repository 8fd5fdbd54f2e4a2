package configuration

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	const config = `
zones:
  - name: Filmwijk
    code: "36044"
    hourly_rate: 0.25
    max_daily_rate: 1.00
    rules:
      - days: [0, 1, 2]
        start_time: "09:00"
        end_time: "22:00"
      - days: [3, 4, 5]
        start_time: "09:00"
        end_time: "24:00"
      - days: [6]
        start_time: "12:00"
        end_time: "17:00"
favorites:
  - name: grandma
    plate: AB123C
`
	c, err := Load(strings.NewReader(config))
	require.NoError(t, err)

	require.Len(t, c.Zones, 1)
	zone := c.Zone()
	assert.Equal(t, "Filmwijk", zone.Name)
	assert.Equal(t, "36044", zone.Code)
	assert.Equal(t, 0.25, zone.HourlyRate)

	// Thursday runs until the end of the day
	thursday := time.Date(2025, time.December, 18, 12, 0, 0, 0, time.Local)
	assert.Equal(t, "23:59", zone.EndOfPaidPeriod(thursday, 0))

	require.Len(t, c.Favorites, 1)
	assert.Equal(t, "AB123C", c.Favorites[0].Plate)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config string
		errMsg string
	}{
		{
			name:   "not yaml",
			config: "zones: [",
			errMsg: "yaml",
		},
		{
			name: "day out of range",
			config: `
zones:
  - name: test
    rules:
      - days: [7]
        start_time: "09:00"
        end_time: "22:00"
`,
			errMsg: "invalid day 7",
		},
		{
			name: "overlapping rules",
			config: `
zones:
  - name: test
    rules:
      - days: [0, 1]
        start_time: "09:00"
        end_time: "22:00"
      - days: [1, 2]
        start_time: "10:00"
        end_time: "23:00"
`,
			errMsg: "day 1 appears in multiple rules",
		},
		{
			name: "favorite without plate",
			config: `
favorites:
  - name: grandma
`,
			errMsg: "favorite needs both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.config))
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestDefaultZone(t *testing.T) {
	var c Configuration
	zone := c.Zone()
	assert.Equal(t, "Filmwijk", zone.Name)

	// every weekday has exactly one rule
	for day := 0; day < 7; day++ {
		date := time.Date(2025, time.December, 15+day, 12, 0, 0, 0, time.Local)
		_, ok := zone.RuleForDay(date)
		assert.True(t, ok, "day %d", day)
	}
}
