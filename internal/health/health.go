// Package health exposes a /health endpoint reporting the sessions the
// store knows about.
package health

import (
	"encoding/json"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"log/slog"
	"net/http"
	"time"
)

type SessionReader interface {
	Load() []parking.Session
}

type Health struct {
	sessions SessionReader
	logger   *slog.Logger
	started  time.Time
}

func New(sessions SessionReader, logger *slog.Logger) *Health {
	return &Health{
		sessions: sessions,
		logger:   logger,
		started:  time.Now(),
	}
}

type report struct {
	Up       bool              `json:"up"`
	Uptime   string            `json:"uptime"`
	Sessions []parking.Session `json:"sessions"`
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(report{
		Up:       true,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Sessions: h.sessions.Load(),
	})
	if err != nil {
		h.logger.Error("failed to write health report", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
