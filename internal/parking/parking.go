// Package parking holds the data model for visitor parking: zones with their
// paid-hours schedules, parking sessions and their derived identity, balances
// and favorite plates.
package parking

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Session is one continuous visitor-parking permission for one plate, bounded
// by a start and an optional end instant. The portal does not hand out an
// identifier, so ID is derived locally from the plate and the start time.
type Session struct {
	ID        string     `json:"id,omitempty"`
	Plate     string     `json:"plate"`
	Active    bool       `json:"active"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// SessionID derives the stable identifier for a session. Two independently
// parsed records for the same plate and start instant always yield the same
// id, which is what lets a later process invocation find a session created by
// an earlier one.
func SessionID(plate string, start time.Time) string {
	sum := md5.Sum([]byte(plate + "-" + start.Format("2006-01-02T15:04:05")))
	return hex.EncodeToString(sum[:])[:8]
}

// NormalizePlate uppercases a plate and strips dashes and spaces. Plates are
// compared in normalized form but displayed as entered.
func NormalizePlate(plate string) string {
	plate = strings.ToUpper(plate)
	plate = strings.ReplaceAll(plate, "-", "")
	return strings.ReplaceAll(plate, " ", "")
}

// SamePlate reports whether two plates refer to the same vehicle, ignoring
// case, dashes and spaces.
func SamePlate(a, b string) bool {
	return NormalizePlate(a) == NormalizePlate(b)
}

// Balance is the prepaid amount the portal displays. Never persisted.
type Balance struct {
	Amount   float64
	Currency string
}

// Favorite is a plate with an optional display name, from static configuration.
type Favorite struct {
	Plate string `yaml:"plate"`
	Name  string `yaml:"name,omitempty"`
}
