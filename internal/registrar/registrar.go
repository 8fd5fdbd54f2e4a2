// Package registrar sequences parking registrations against the portal: it
// turns a request ("this plate, three days, all day") into concrete single-day
// submissions, reconciles the scraped session list with the local store, and
// stops sessions by id or by plate.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"github.com/DanielTromp/bezoekersparkeren/internal/scraper"
	"log/slog"
	"time"
)

var (
	// ErrStopNotFound indicates the portal no longer shows the session we
	// were asked to stop.
	ErrStopNotFound = errors.New("session not found on portal")
	ErrNoBalance    = errors.New("no balance found")
)

// Driver performs the actual browser-level interaction with the portal. All
// methods are sequential round trips against one shared page; the registrar
// never overlaps calls.
type Driver interface {
	SubmitRegistration(ctx context.Context, registration Registration) error
	FetchActiveSessions(ctx context.Context) (string, error)
	FetchBalance(ctx context.Context) (string, error)
	SubmitStop(ctx context.Context, session parking.Session) (bool, error)
}

// SessionStore bridges CLI invocations that don't share in-process state.
type SessionStore interface {
	Load() []parking.Session
	Save([]parking.Session) error
	AddOrUpdate(parking.Session) error
	Remove(id string) error
	Get(id string) (parking.Session, error)
}

// Registration is one atomic single-day submission. Dates are DD-MM-YYYY,
// times HH:MM, matching the portal's form fields.
type Registration struct {
	Plate     string
	StartDate string
	StartTime string
	EndDate   string
	EndTime   string
}

// Request describes what the caller wants registered.
type Request struct {
	Plate     string
	Days      int    // number of consecutive days, >= 1
	Date      string // anchor date: DD-MM-YYYY, "tomorrow", or empty for today
	StartTime string // explicit start (HH:MM), applied to every day
	EndTime   string // explicit end (HH:MM)
	Hours     int    // duration added to the start time
	Minutes   int
	AllDay    bool // park until the end of the paid period
}

type Registrar struct {
	driver Driver
	store  SessionStore
	parser *scraper.Parser
	zone   *parking.Zone
	logger *slog.Logger
	clock  func() time.Time
	pacing time.Duration
}

// New creates a Registrar. zone may be nil when no zone is configured.
func New(driver Driver, store SessionStore, zone *parking.Zone, logger *slog.Logger) *Registrar {
	return &Registrar{
		driver: driver,
		store:  store,
		parser: scraper.New(logger.With("component", "scraper")),
		zone:   zone,
		logger: logger,
		clock:  time.Now,
		pacing: 2 * time.Second,
	}
}

// Register submits one registration per day, in day order. On failure the
// sessions registered so far are returned along with the error: earlier days
// have already been committed remotely and are not rolled back.
func (r *Registrar) Register(ctx context.Context, req Request) ([]parking.Session, error) {
	if req.Days < 1 {
		req.Days = 1
	}

	anchor, err := r.anchorDate(req.Date)
	if err != nil {
		return nil, err
	}

	sessions := make([]parking.Session, 0, req.Days)
	for i := 0; i < req.Days; i++ {
		date := anchor.AddDate(0, 0, i)

		startTime := r.startTimeFor(req, date, i)
		endTime := r.endTimeFor(req, date, startTime)

		registration := Registration{
			Plate:     req.Plate,
			StartDate: date.Format("02-01-2006"),
			StartTime: startTime,
			EndDate:   date.Format("02-01-2006"),
			EndTime:   endTime,
		}

		r.logger.Info("registering",
			"plate", req.Plate,
			"date", registration.StartDate,
			"start", registration.StartTime,
			"end", registration.EndTime,
			"day", i+1,
			"days", req.Days,
		)

		if err = r.driver.SubmitRegistration(ctx, registration); err != nil {
			return sessions, fmt.Errorf("day %d of %d: %w", i+1, req.Days, err)
		}

		session := makeSession(req.Plate, date, startTime, endTime)
		if err = r.store.AddOrUpdate(session); err != nil {
			r.logger.Warn("failed to record session locally", "err", err)
		}
		sessions = append(sessions, session)

		if i < req.Days-1 {
			// give the portal a moment between submissions
			select {
			case <-ctx.Done():
				return sessions, ctx.Err()
			case <-time.After(r.pacing):
			}
		}
	}
	return sessions, nil
}

func (r *Registrar) anchorDate(date string) (time.Time, error) {
	now := r.clock()
	switch {
	case date == "":
		return now, nil
	case date == "tomorrow":
		return now.AddDate(0, 0, 1), nil
	default:
		anchor, err := time.ParseInLocation("02-01-2006", date, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q (use DD-MM-YYYY or \"tomorrow\"): %w", date, err)
		}
		return anchor, nil
	}
}

// startTimeFor picks the start time for one day: an explicit start applies to
// every day; otherwise day 0 of an unanchored run starts right now, and any
// future day starts when the zone's paid period opens.
func (r *Registrar) startTimeFor(req Request, date time.Time, day int) string {
	if req.StartTime != "" {
		return req.StartTime
	}
	if day == 0 && req.Date == "" {
		return r.clock().Format("15:04")
	}
	if r.zone != nil {
		if rule, ok := r.zone.RuleForDay(date); ok {
			return rule.StartTime
		}
	}
	return "00:00"
}

// endTimeFor resolves the end time: all-day uses the zone schedule, otherwise
// an explicit end time or a duration added to the start. The end date is
// always the start date; multi-day spans are N single-day sessions.
func (r *Registrar) endTimeFor(req Request, date time.Time, startTime string) string {
	if req.AllDay && r.zone != nil {
		return r.zone.EndOfPaidPeriod(date, 0)
	}
	if req.EndTime != "" {
		return req.EndTime
	}
	if req.Hours > 0 || req.Minutes > 0 {
		start, err := time.Parse("15:04", startTime)
		if err == nil {
			return start.
				Add(time.Duration(req.Hours)*time.Hour + time.Duration(req.Minutes)*time.Minute).
				Format("15:04")
		}
	}
	return ""
}

func makeSession(plate string, date time.Time, startTime, endTime string) parking.Session {
	start := combine(date, startTime)
	session := parking.Session{
		ID:        parking.SessionID(plate, start),
		Plate:     plate,
		Active:    true,
		StartTime: &start,
	}
	if endTime != "" {
		end := combine(date, endTime)
		session.EndTime = &end
	}
	return session
}

func combine(date time.Time, clock string) time.Time {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// List scrapes the portal's active sessions and overwrites the local store
// with the result.
func (r *Registrar) List(ctx context.Context) ([]parking.Session, error) {
	markup, err := r.driver.FetchActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	sessions := r.parser.Sessions(markup)
	if err = r.store.Save(sessions); err != nil {
		r.logger.Warn("failed to save sessions locally", "err", err)
	}
	return sessions, nil
}

// Stop ends the session with the given id. The id must be known to the local
// store (from an earlier register or list).
func (r *Registrar) Stop(ctx context.Context, id string) (parking.Session, error) {
	session, err := r.store.Get(id)
	if err != nil {
		return parking.Session{}, err
	}

	found, err := r.driver.SubmitStop(ctx, session)
	if err != nil {
		return session, fmt.Errorf("stop %s: %w", id, err)
	}
	if !found {
		return session, ErrStopNotFound
	}

	if err = r.store.Remove(id); err != nil {
		r.logger.Warn("failed to remove stopped session locally", "id", id, "err", err)
	}
	return session, nil
}

// StopAll stops every active session for plate and returns how many were
// stopped. The portal is re-scraped on every iteration, since stopping a
// session changes the page; a stop that no longer finds its target ends the
// loop rather than spinning on an inconsistent portal.
func (r *Registrar) StopAll(ctx context.Context, plate string) (int, error) {
	var count int
	for {
		markup, err := r.driver.FetchActiveSessions(ctx)
		if err != nil {
			return count, fmt.Errorf("fetch sessions: %w", err)
		}

		var target *parking.Session
		for _, session := range r.parser.Sessions(markup) {
			if parking.SamePlate(session.Plate, plate) {
				target = &session
				break
			}
		}
		if target == nil {
			r.logger.Debug("no more sessions", "plate", plate, "stopped", count)
			return count, nil
		}

		found, err := r.driver.SubmitStop(ctx, *target)
		if err != nil {
			return count, fmt.Errorf("stop %s: %w", target.ID, err)
		}
		if !found {
			r.logger.Warn("session disappeared before it could be stopped", "id", target.ID)
			return count, nil
		}

		if err = r.store.Remove(target.ID); err != nil {
			r.logger.Warn("failed to remove stopped session locally", "id", target.ID, "err", err)
		}
		count++
	}
}

// Balance reads the portal's displayed balance.
func (r *Registrar) Balance(ctx context.Context) (parking.Balance, error) {
	value, err := r.driver.FetchBalance(ctx)
	if err != nil {
		return parking.Balance{}, fmt.Errorf("fetch balance: %w", err)
	}
	balance, ok := scraper.ParseBalance(value)
	if !ok {
		return parking.Balance{}, ErrNoBalance
	}
	return balance, nil
}
