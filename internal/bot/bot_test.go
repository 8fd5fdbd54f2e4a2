package bot

import (
	"context"
	"errors"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"github.com/DanielTromp/bezoekersparkeren/internal/registrar"
	"github.com/clambin/go-common/slackbot"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"testing"
	"time"
)

type fakeSlackBot struct {
	commands map[string]slackbot.CommandFunc
}

func (f *fakeSlackBot) Register(name string, command slackbot.CommandFunc) {
	if f.commands == nil {
		f.commands = make(map[string]slackbot.CommandFunc)
	}
	f.commands[name] = command
}

func (f *fakeSlackBot) Run(_ context.Context) error               { return nil }
func (f *fakeSlackBot) Send(_ string, _ []slack.Attachment) error { return nil }

type fakeRegistrar struct {
	registered []registrar.Request
	sessions   []parking.Session
	stopped    int
	balance    parking.Balance
	err        error
}

func (f *fakeRegistrar) Register(_ context.Context, req registrar.Request) ([]parking.Session, error) {
	f.registered = append(f.registered, req)
	return f.sessions, f.err
}

func (f *fakeRegistrar) List(_ context.Context) ([]parking.Session, error) {
	return f.sessions, f.err
}

func (f *fakeRegistrar) StopAll(_ context.Context, _ string) (int, error) {
	return f.stopped, f.err
}

func (f *fakeRegistrar) Balance(_ context.Context) (parking.Balance, error) {
	return f.balance, f.err
}

type fakePlateReader struct {
	plate string
	url   string
	err   error
}

func (f *fakePlateReader) Plate(_ context.Context, url string) (string, error) {
	f.url = url
	return f.plate, f.err
}

var testFavorites = []parking.Favorite{
	{Plate: "AB123C", Name: "grandma"},
}

func newTestBot(r Registrar, plates PlateReader) (*Bot, *fakeSlackBot) {
	sb := &fakeSlackBot{}
	b := New(r, sb, plates, testFavorites, slog.Default())
	return b, sb
}

func TestBot_RegistersCommands(t *testing.T) {
	_, sb := newTestBot(&fakeRegistrar{}, nil)
	for _, name := range []string{"register", "stop", "list", "balance", "favorites", "plate"} {
		assert.Contains(t, sb.commands, name)
	}
}

func TestBot_OnRegister(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, time.December, 15, 14, 37, 0, 0, time.Local)
	end := time.Date(2025, time.December, 15, 22, 0, 0, 0, time.Local)

	t.Run("plate with day count", func(t *testing.T) {
		r := &fakeRegistrar{sessions: []parking.Session{
			{ID: "1", Plate: "XX99YY", StartTime: &start, EndTime: &end},
		}}
		b, _ := newTestBot(r, nil)

		attachments := b.OnRegister(ctx, "xx-99-yy", "3")
		require.Len(t, attachments, 1)
		assert.Equal(t, "good", attachments[0].Color)
		assert.Equal(t, "registered XX99YY for 3 day(s)", attachments[0].Title)

		require.Len(t, r.registered, 1)
		assert.Equal(t, "XX99YY", r.registered[0].Plate)
		assert.Equal(t, 3, r.registered[0].Days)
		assert.True(t, r.registered[0].AllDay)
	})

	t.Run("favorite name", func(t *testing.T) {
		r := &fakeRegistrar{}
		b, _ := newTestBot(r, nil)

		b.OnRegister(ctx, "grandma")
		require.Len(t, r.registered, 1)
		assert.Equal(t, "AB123C", r.registered[0].Plate)
		assert.Equal(t, 1, r.registered[0].Days)
	})

	t.Run("missing plate", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{}, nil)
		attachments := b.OnRegister(ctx)
		require.Len(t, attachments, 1)
		assert.Equal(t, "bad", attachments[0].Color)
	})

	t.Run("invalid day count", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{}, nil)
		attachments := b.OnRegister(ctx, "AB123C", "soon")
		assert.Equal(t, "bad", attachments[0].Color)
	})

	t.Run("partial failure reports progress", func(t *testing.T) {
		r := &fakeRegistrar{
			sessions: []parking.Session{{ID: "1", Plate: "AB123C"}},
			err:      errors.New("day 2 of 3: boom"),
		}
		b, _ := newTestBot(r, nil)
		attachments := b.OnRegister(ctx, "AB123C", "3")
		assert.Equal(t, "bad", attachments[0].Color)
		assert.Contains(t, attachments[0].Text, "registered 1 of 3 days")
	})
}

func TestBot_OnStop(t *testing.T) {
	ctx := context.Background()

	t.Run("stopped sessions", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{stopped: 2}, nil)
		attachments := b.OnStop(ctx, "grandma")
		assert.Equal(t, "good", attachments[0].Color)
		assert.Equal(t, "stopped 2 session(s) for AB123C", attachments[0].Text)
	})

	t.Run("nothing to stop", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{}, nil)
		attachments := b.OnStop(ctx, "AB123C")
		assert.Equal(t, "good", attachments[0].Color)
		assert.Contains(t, attachments[0].Text, "no active sessions")
	})

	t.Run("failure after partial progress", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{stopped: 1, err: errors.New("portal down")}, nil)
		attachments := b.OnStop(ctx, "AB123C")
		assert.Equal(t, "bad", attachments[0].Color)
		assert.Contains(t, attachments[0].Text, "stopped 1 session(s)")
	})
}

func TestBot_OnList(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, time.December, 15, 9, 0, 0, 0, time.Local)
	end := time.Date(2025, time.December, 15, 22, 0, 0, 0, time.Local)

	t.Run("sessions", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{sessions: []parking.Session{
			{ID: "1", Plate: "AB123C", StartTime: &start, EndTime: &end},
			{ID: "2", Plate: "XX99YY", StartTime: &start},
		}}, nil)
		attachments := b.OnList(ctx)
		assert.Equal(t, "good", attachments[0].Color)
		assert.Equal(t, "AB123C: Mon 15 Dec 09:00 until 22:00\nXX99YY: Mon 15 Dec 09:00", attachments[0].Text)
	})

	t.Run("empty", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{}, nil)
		attachments := b.OnList(ctx)
		assert.Equal(t, "no active parking sessions", attachments[0].Text)
	})

	t.Run("error", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{err: errors.New("portal down")}, nil)
		attachments := b.OnList(ctx)
		assert.Equal(t, "bad", attachments[0].Color)
	})
}

func TestBot_OnBalance(t *testing.T) {
	b, _ := newTestBot(&fakeRegistrar{balance: parking.Balance{Amount: 19.10, Currency: "EUR"}}, nil)
	attachments := b.OnBalance(context.Background())
	assert.Equal(t, "balance: € 19.10", attachments[0].Text)
}

func TestBot_OnFavorites(t *testing.T) {
	b, _ := newTestBot(&fakeRegistrar{}, nil)
	attachments := b.OnFavorites(context.Background())
	assert.Equal(t, "grandma: AB123C", attachments[0].Text)
}

func TestBot_OnPlate(t *testing.T) {
	ctx := context.Background()

	t.Run("recognized", func(t *testing.T) {
		plates := &fakePlateReader{plate: "AB123C"}
		b, _ := newTestBot(&fakeRegistrar{}, plates)
		attachments := b.OnPlate(ctx, "<https://example.com/car.jpg|car.jpg>")
		assert.Equal(t, "good", attachments[0].Color)
		assert.Contains(t, attachments[0].Text, "AB123C")
		assert.Equal(t, "https://example.com/car.jpg", plates.url)
	})

	t.Run("not recognized", func(t *testing.T) {
		plates := &fakePlateReader{err: errors.New("no licence plate found")}
		b, _ := newTestBot(&fakeRegistrar{}, plates)
		attachments := b.OnPlate(ctx, "https://example.com/car.jpg")
		assert.Equal(t, "bad", attachments[0].Color)
	})

	t.Run("not configured", func(t *testing.T) {
		b, _ := newTestBot(&fakeRegistrar{}, nil)
		attachments := b.OnPlate(ctx, "https://example.com/car.jpg")
		assert.Equal(t, "bad", attachments[0].Color)
	})
}
