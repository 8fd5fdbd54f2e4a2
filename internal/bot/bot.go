// Package bot adds a Slack front end for registering and stopping visitor
// parking sessions.
package bot

import (
	"context"
	"fmt"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"github.com/DanielTromp/bezoekersparkeren/internal/registrar"
	"github.com/clambin/go-common/slackbot"
	"github.com/slack-go/slack"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

type Bot struct {
	registrar Registrar
	slack     SlackBot
	plates    PlateReader
	favorites []parking.Favorite
	logger    *slog.Logger
}

type Registrar interface {
	Register(ctx context.Context, req registrar.Request) ([]parking.Session, error)
	List(ctx context.Context) ([]parking.Session, error)
	StopAll(ctx context.Context, plate string) (int, error)
	Balance(ctx context.Context) (parking.Balance, error)
}

type SlackBot interface {
	Register(name string, command slackbot.CommandFunc)
	Run(ctx context.Context) error
	Send(channel string, attachments []slack.Attachment) error
}

type PlateReader interface {
	Plate(ctx context.Context, url string) (string, error)
}

func New(r Registrar, parkBot SlackBot, plates PlateReader, favorites []parking.Favorite, logger *slog.Logger) *Bot {
	b := Bot{
		registrar: r,
		slack:     parkBot,
		plates:    plates,
		favorites: favorites,
		logger:    logger.With(slog.String("component", "parkbot")),
	}
	parkBot.Register("register", b.OnRegister)
	parkBot.Register("stop", b.OnStop)
	parkBot.Register("list", b.OnList)
	parkBot.Register("balance", b.OnBalance)
	parkBot.Register("favorites", b.OnFavorites)
	parkBot.Register("plate", b.OnPlate)

	return &b
}

func (b *Bot) Run(ctx context.Context) error {
	b.logger.Debug("started")
	defer b.logger.Debug("stopped")
	<-ctx.Done()
	return nil
}

func (b *Bot) OnRegister(ctx context.Context, args ...string) []slack.Attachment {
	if len(args) < 1 {
		return errorAttachment("missing plate\nUsage: register <plate> [days]")
	}

	plate := b.resolvePlate(args[0])
	days := 1
	if len(args) > 1 {
		var err error
		if days, err = strconv.Atoi(args[1]); err != nil || days < 1 {
			return errorAttachment(fmt.Sprintf("invalid number of days: %q", args[1]))
		}
	}

	sessions, err := b.registrar.Register(ctx, registrar.Request{
		Plate:  plate,
		Days:   days,
		AllDay: true,
	})
	if err != nil {
		b.logger.Error("registration failed", "plate", plate, "err", err)
		if len(sessions) > 0 {
			return errorAttachment(fmt.Sprintf("registered %d of %d days for %s: %s",
				len(sessions), days, plate, err.Error()))
		}
		return errorAttachment("registration failed: " + err.Error())
	}

	lines := make([]string, 0, len(sessions))
	for _, session := range sessions {
		lines = append(lines, describeSession(session))
	}
	return []slack.Attachment{{
		Color: "good",
		Title: fmt.Sprintf("registered %s for %d day(s)", plate, days),
		Text:  strings.Join(lines, "\n"),
	}}
}

func (b *Bot) OnStop(ctx context.Context, args ...string) []slack.Attachment {
	if len(args) != 1 {
		return errorAttachment("missing plate\nUsage: stop <plate>")
	}
	plate := b.resolvePlate(args[0])

	stopped, err := b.registrar.StopAll(ctx, plate)
	if err != nil {
		if stopped > 0 {
			return errorAttachment(fmt.Sprintf("stopped %d session(s) for %s, then failed: %s", stopped, plate, err.Error()))
		}
		return errorAttachment("stop failed: " + err.Error())
	}
	if stopped == 0 {
		return []slack.Attachment{{
			Color: "good",
			Text:  "no active sessions for " + plate,
		}}
	}
	return []slack.Attachment{{
		Color: "good",
		Text:  fmt.Sprintf("stopped %d session(s) for %s", stopped, plate),
	}}
}

func (b *Bot) OnList(ctx context.Context, _ ...string) []slack.Attachment {
	sessions, err := b.registrar.List(ctx)
	if err != nil {
		return errorAttachment("could not list sessions: " + err.Error())
	}
	if len(sessions) == 0 {
		return []slack.Attachment{{
			Color: "good",
			Text:  "no active parking sessions",
		}}
	}

	lines := make([]string, 0, len(sessions))
	for _, session := range sessions {
		lines = append(lines, describeSession(session))
	}
	sort.Strings(lines)
	return []slack.Attachment{{
		Color: "good",
		Title: "active sessions:",
		Text:  strings.Join(lines, "\n"),
	}}
}

func (b *Bot) OnBalance(ctx context.Context, _ ...string) []slack.Attachment {
	balance, err := b.registrar.Balance(ctx)
	if err != nil {
		return errorAttachment("could not read balance: " + err.Error())
	}
	return []slack.Attachment{{
		Color: "good",
		Text:  fmt.Sprintf("balance: € %.2f", balance.Amount),
	}}
}

func (b *Bot) OnFavorites(_ context.Context, _ ...string) []slack.Attachment {
	if len(b.favorites) == 0 {
		return []slack.Attachment{{Text: "no favorites configured"}}
	}
	lines := make([]string, 0, len(b.favorites))
	for _, favorite := range b.favorites {
		lines = append(lines, favorite.Name+": "+favorite.Plate)
	}
	sort.Strings(lines)
	return []slack.Attachment{{
		Color: "good",
		Title: "favorites:",
		Text:  strings.Join(lines, "\n"),
	}}
}

func (b *Bot) OnPlate(ctx context.Context, args ...string) []slack.Attachment {
	if b.plates == nil {
		return errorAttachment("plate recognition is not configured")
	}
	if len(args) != 1 {
		return errorAttachment("missing image\nUsage: plate <image url>")
	}

	plate, err := b.plates.Plate(ctx, stripSlackURL(args[0]))
	if err != nil {
		return errorAttachment("could not read the plate: " + err.Error())
	}
	return []slack.Attachment{{
		Color: "good",
		Text:  fmt.Sprintf("that looks like %s. register it with: register %s", plate, plate),
	}}
}

// resolvePlate maps a favorite's name to its plate. Anything else is taken
// to be a plate itself.
func (b *Bot) resolvePlate(arg string) string {
	for _, favorite := range b.favorites {
		if strings.EqualFold(favorite.Name, arg) {
			return parking.NormalizePlate(favorite.Plate)
		}
	}
	return parking.NormalizePlate(arg)
}

func describeSession(session parking.Session) string {
	line := session.Plate
	if session.StartTime != nil {
		line += ": " + session.StartTime.Format("Mon 2 Jan 15:04")
	}
	if session.EndTime != nil {
		line += " until " + session.EndTime.Format("15:04")
	}
	return line
}

// stripSlackURL removes the <...> (and <...|label>) wrapping Slack puts
// around links.
func stripSlackURL(arg string) string {
	arg = strings.TrimPrefix(arg, "<")
	arg = strings.TrimSuffix(arg, ">")
	if idx := strings.IndexByte(arg, '|'); idx != -1 {
		arg = arg[:idx]
	}
	return arg
}

func errorAttachment(text string) []slack.Attachment {
	return []slack.Attachment{{
		Color: "bad",
		Text:  text,
	}}
}
