package cmd

import (
	"errors"
	"github.com/DanielTromp/bezoekersparkeren/internal/cmd/park"
	parkbot "github.com/DanielTromp/bezoekersparkeren/internal/cmd/slackbot"
	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"time"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "bezoekersparkeren",
		Short: "Register visitor parking sessions on bezoek.parkeer.nl",
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	_ = charmer.SetPersistentFlags(&RootCmd, viper.GetViper(), args)

	RootCmd.AddCommand(&park.RegisterCmd, &park.ListCmd, &park.StopCmd, &park.BalanceCmd, &parkbot.Cmd)
}

var args = charmer.Arguments{
	"debug":                {Default: false, Help: "Log debug messages"},
	"municipality":         {Default: "almere", Help: "Municipality on bezoek.parkeer.nl"},
	"credentials.username": {Default: "", Help: "Portal username"},
	"credentials.password": {Default: "", Help: "Portal password"},
	"browser.headless":     {Default: true, Help: "Run the browser headless"},
	"browser.timeout":      {Default: 30 * time.Second, Help: "Timeout for browser operations"},
	"store.path":           {Default: "parking_sessions.json", Help: "Path of the session store"},
	"slack.token":          {Default: "", Help: "Slack token"},
	"openrouter.apikey":    {Default: "", Help: "OpenRouter API key for plate recognition"},
	"openrouter.model":     {Default: "", Help: "OpenRouter vision model"},
	"metrics.addr":         {Default: ":9090", Help: "Address of the Prometheus metrics endpoint"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/bezoekersparkeren/")
		viper.AddConfigPath("$HOME/.bezoekersparkeren")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("BEZOEKERSPARKEREN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}
