package parking

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestSessionID(t *testing.T) {
	start := time.Date(2025, time.December, 18, 22, 0, 0, 0, time.Local)

	id := SessionID("AB-123-CD", start)
	assert.Len(t, id, 8)
	assert.Equal(t, id, SessionID("AB-123-CD", start))

	// one second difference changes the id
	assert.NotEqual(t, id, SessionID("AB-123-CD", start.Add(time.Second)))
	assert.NotEqual(t, id, SessionID("XY-999-ZZ", start))
}

func TestSamePlate(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "identical", a: "AB-123-CD", b: "AB-123-CD", want: true},
		{name: "dashes insignificant", a: "AB-123-CD", b: "AB123CD", want: true},
		{name: "case insignificant", a: "ab-123-cd", b: "AB-123-CD", want: true},
		{name: "spaces insignificant", a: "AB 123 CD", b: "AB-123-CD", want: true},
		{name: "different plates", a: "AB-123-CD", b: "AB-123-CE", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SamePlate(tt.a, tt.b))
		})
	}
}
