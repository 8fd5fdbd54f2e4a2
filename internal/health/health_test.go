package health

import (
	"encoding/json"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeStore []parking.Session

func (f fakeStore) Load() []parking.Session { return f }

func TestHealth_ServeHTTP(t *testing.T) {
	start := time.Date(2025, time.December, 15, 9, 0, 0, 0, time.Local)
	h := New(fakeStore{{ID: "abcd1234", Plate: "AB123C", Active: true, StartTime: &start}}, slog.Default())

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, &http.Request{})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))

	var r report
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &r))
	assert.True(t, r.Up)
	require.Len(t, r.Sessions, 1)
	assert.Equal(t, "AB123C", r.Sessions[0].Plate)
}

func TestHealth_ServeHTTP_Empty(t *testing.T) {
	h := New(fakeStore{}, slog.Default())

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, &http.Request{})
	assert.Equal(t, http.StatusOK, resp.Code)
}
