// Package park implements the command line front end: register, list, stop
// and balance.
package park

import (
	"context"
	"errors"
	"fmt"
	"github.com/DanielTromp/bezoekersparkeren/internal/configuration"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"github.com/DanielTromp/bezoekersparkeren/internal/portal"
	"github.com/DanielTromp/bezoekersparkeren/internal/registrar"
	"github.com/DanielTromp/bezoekersparkeren/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var RegisterCmd = cobra.Command{
	Use:   "register <plate> [days]",
	Short: "Register a visitor's plate, today or over multiple days",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, cmdArgs []string) error {
		days := 1
		if len(cmdArgs) > 1 {
			var err error
			if days, err = strconv.Atoi(cmdArgs[1]); err != nil || days < 1 {
				return fmt.Errorf("invalid number of days: %q", cmdArgs[1])
			}
		}
		req := registrar.Request{
			Plate:     parking.NormalizePlate(cmdArgs[0]),
			Days:      days,
			Date:      viper.GetString("register.date"),
			StartTime: viper.GetString("register.start"),
			EndTime:   viper.GetString("register.end"),
			Hours:     viper.GetInt("register.hours"),
			Minutes:   viper.GetInt("register.minutes"),
		}
		req.AllDay = viper.GetBool("register.all-day") ||
			(req.EndTime == "" && req.Hours == 0 && req.Minutes == 0)

		return withRegistrar(cmd.Context(), func(ctx context.Context, r *registrar.Registrar) error {
			sessions, err := r.Register(ctx, req)
			for _, session := range sessions {
				cmd.Printf("registered %s from %s until %s\n",
					session.Plate, timestamp(session.StartTime), timestamp(session.EndTime))
			}
			return err
		})
	},
}

var ListCmd = cobra.Command{
	Use:   "list",
	Short: "List the active parking sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRegistrar(cmd.Context(), func(ctx context.Context, r *registrar.Registrar) error {
			sessions, err := r.List(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				cmd.Println("no active parking sessions")
				return nil
			}
			for _, session := range sessions {
				cmd.Printf("%-8s %-10s %s - %s\n",
					session.ID, session.Plate, timestamp(session.StartTime), timestamp(session.EndTime))
			}
			return nil
		})
	},
}

var StopCmd = cobra.Command{
	Use:   "stop <plate or session id>",
	Short: "Stop active sessions, all for a plate or one by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, cmdArgs []string) error {
		return withRegistrar(cmd.Context(), func(ctx context.Context, r *registrar.Registrar) error {
			// a known session id stops that one session; anything else is
			// treated as a plate
			session, err := r.Stop(ctx, cmdArgs[0])
			if err == nil {
				cmd.Printf("stopped session for %s\n", session.Plate)
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			stopped, err := r.StopAll(ctx, cmdArgs[0])
			cmd.Printf("stopped %d session(s)\n", stopped)
			return err
		})
	},
}

var BalanceCmd = cobra.Command{
	Use:   "balance",
	Short: "Show the remaining parking balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRegistrar(cmd.Context(), func(ctx context.Context, r *registrar.Registrar) error {
			balance, err := r.Balance(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("balance: € %.2f\n", balance.Amount)
			return nil
		})
	},
}

func init() {
	RegisterCmd.Flags().String("date", "", `Start date (DD-MM-YYYY or "tomorrow")`)
	RegisterCmd.Flags().String("start", "", "Start time (HH:MM)")
	RegisterCmd.Flags().String("end", "", "End time (HH:MM)")
	RegisterCmd.Flags().Int("hours", 0, "Duration in hours")
	RegisterCmd.Flags().Int("minutes", 0, "Duration in minutes")
	RegisterCmd.Flags().Bool("all-day", false, "Park until the end of the paid period")
	_ = viper.BindPFlag("register.all-day", RegisterCmd.Flags().Lookup("all-day"))
	_ = viper.BindPFlag("register.date", RegisterCmd.Flags().Lookup("date"))
	_ = viper.BindPFlag("register.start", RegisterCmd.Flags().Lookup("start"))
	_ = viper.BindPFlag("register.end", RegisterCmd.Flags().Lookup("end"))
	_ = viper.BindPFlag("register.hours", RegisterCmd.Flags().Lookup("hours"))
	_ = viper.BindPFlag("register.minutes", RegisterCmd.Flags().Lookup("minutes"))
}

// withRegistrar builds the full stack, logs in and runs f against the portal.
func withRegistrar(ctx context.Context, f func(context.Context, *registrar.Registrar) error) error {
	logger := Logger()

	cfg, err := MaybeLoadZones(filepath.Join(filepath.Dir(viper.ConfigFileUsed()), "zones.yaml"))
	if err != nil {
		return err
	}
	zone := cfg.Zone()

	p := portal.New(portal.Config{
		Municipality: viper.GetString("municipality"),
		Username:     viper.GetString("credentials.username"),
		Password:     viper.GetString("credentials.password"),
		Headless:     viper.GetBool("browser.headless"),
		Timeout:      viper.GetDuration("browser.timeout"),
	}, logger.With("component", "portal"))

	if err = p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	if err = p.Login(ctx); err != nil {
		return err
	}

	sessions := store.New(viper.GetString("store.path"), logger.With("component", "store"))
	return f(ctx, registrar.New(p, sessions, &zone, logger.With("component", "registrar")))
}

// MaybeLoadZones reads zones.yaml next to the config file. A missing file is
// not an error: the default zone applies.
func MaybeLoadZones(path string) (configuration.Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		return configuration.Configuration{}, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return configuration.Load(f)
}

func Logger() *slog.Logger {
	var opts slog.HandlerOptions
	if viper.GetBool("debug") {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &opts))
}

func timestamp(t *time.Time) string {
	if t == nil {
		return "?"
	}
	return t.Format("Mon 2 Jan 15:04")
}
