// Package configuration loads the zone schedules and favorite plates from
// zones.yaml.
package configuration

import (
	"fmt"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"gopkg.in/yaml.v3"
	"io"
)

type Configuration struct {
	Zones     []parking.Zone     `yaml:"zones"`
	Favorites []parking.Favorite `yaml:"favorites"`
}

func Load(r io.Reader) (Configuration, error) {
	var c Configuration
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Configuration{}, err
	}
	if err := c.validate(); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

func (c Configuration) validate() error {
	for _, zone := range c.Zones {
		seen := make(map[int]string)
		for _, rule := range zone.Rules {
			for _, day := range rule.Days {
				if day < 0 || day > 6 {
					return fmt.Errorf("zone %s: invalid day %d", zone.Name, day)
				}
				if other, ok := seen[day]; ok {
					return fmt.Errorf("zone %s: day %d appears in multiple rules (%s and %s)",
						zone.Name, day, other, rule.StartTime+"-"+rule.EndTime)
				}
				seen[day] = rule.StartTime + "-" + rule.EndTime
			}
		}
	}
	for _, favorite := range c.Favorites {
		if favorite.Name == "" || favorite.Plate == "" {
			return fmt.Errorf("favorite needs both a name and a plate: %+v", favorite)
		}
	}
	return nil
}

// Zone returns the configured zone, falling back to the Filmwijk defaults
// when no zones are configured.
func (c Configuration) Zone() parking.Zone {
	if len(c.Zones) > 0 {
		return c.Zones[0]
	}
	return DefaultZone()
}

// DefaultZone is the Almere Filmwijk visitor zone.
func DefaultZone() parking.Zone {
	return parking.Zone{
		Name: "Filmwijk",
		Code: "36044",
		Rules: []parking.ScheduleRule{
			{Days: []int{0, 1, 2}, StartTime: "09:00", EndTime: "22:00"},
			{Days: []int{3, 4, 5}, StartTime: "09:00", EndTime: "24:00"},
			{Days: []int{6}, StartTime: "12:00", EndTime: "17:00"},
		},
		HourlyRate:   0.25,
		MaxDailyRate: 1.00,
	}
}
