// Package slackbot runs the Slack front end as a long-lived service.
package slackbot

import (
	"context"
	"errors"
	"github.com/DanielTromp/bezoekersparkeren/internal/bot"
	"github.com/DanielTromp/bezoekersparkeren/internal/cmd/park"
	"github.com/DanielTromp/bezoekersparkeren/internal/health"
	"github.com/DanielTromp/bezoekersparkeren/internal/portal"
	"github.com/DanielTromp/bezoekersparkeren/internal/registrar"
	"github.com/DanielTromp/bezoekersparkeren/internal/store"
	"github.com/DanielTromp/bezoekersparkeren/internal/vision"
	"github.com/clambin/go-common/slackbot"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net/http"
	"path/filepath"
)

var Cmd = cobra.Command{
	Use:   "slackbot",
	Short: "Run the Slack bot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), cmd.Root().Version, viper.GetViper())
	},
}

func run(ctx context.Context, version string, cfg *viper.Viper) error {
	logger := park.Logger()

	token := cfg.GetString("slack.token")
	if token == "" {
		return errors.New("no slack token configured")
	}

	configuration, err := park.MaybeLoadZones(filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "zones.yaml"))
	if err != nil {
		return err
	}
	zone := configuration.Zone()

	p := portal.New(portal.Config{
		Municipality: cfg.GetString("municipality"),
		Username:     cfg.GetString("credentials.username"),
		Password:     cfg.GetString("credentials.password"),
		Headless:     cfg.GetBool("browser.headless"),
		Timeout:      cfg.GetDuration("browser.timeout"),
	}, logger.With("component", "portal"))

	if err = p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	if err = p.Login(ctx); err != nil {
		return err
	}

	sessions := store.New(cfg.GetString("store.path"), logger.With("component", "store"))
	r := registrar.New(p, sessions, &zone, logger.With("component", "registrar"))

	var plates bot.PlateReader
	if apiKey := cfg.GetString("openrouter.apikey"); apiKey != "" {
		plates = vision.New(apiKey, cfg.GetString("openrouter.model"), logger.With("component", "vision"))
	}

	sb := slackbot.New(
		token,
		slackbot.WithName("bezoekersparkeren "+version),
		slackbot.WithLogger(logger.With(slog.String("component", "slackbot"))),
	)
	b := bot.New(r, sb, plates, configuration.Favorites, logger.With("component", "bot"))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return sb.Run(groupCtx) })
	group.Go(func() error { return b.Run(groupCtx) })
	group.Go(func() error {
		return runMetricsServer(groupCtx, cfg.GetString("metrics.addr"),
			health.New(sessions, logger.With("component", "health")))
	})

	return group.Wait()
}

func runMetricsServer(ctx context.Context, addr string, h http.Handler) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", h)
	server := http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		_ = server.Close()
		return nil
	}
}
