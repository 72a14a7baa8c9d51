package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AcmeNiles/AcmeTradeBot/core/bootstrap"
	"github.com/AcmeNiles/AcmeTradeBot/core/buildinfo"
	corecmd "github.com/AcmeNiles/AcmeTradeBot/core/cmd"
	coreconfig "github.com/AcmeNiles/AcmeTradeBot/core/config"
	"github.com/AcmeNiles/AcmeTradeBot/internal/bot"
	"github.com/AcmeNiles/AcmeTradeBot/internal/envelope"
)

const appName = "acmebot"

var configPath string

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Acme conversational commerce bot for Telegram",
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and the order callback listener",
	RunE:  serve,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a fresh hex encryption key for crypto.encryption_key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := envelope.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}

func serve(*cobra.Command, []string) error {
	return corecmd.Run(corecmd.Options{
		AppName:           appName,
		ConfigPath:        configPath,
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return coreconfig.Load(path)
		},
		Bootstrap: func(cc corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := cc.CoreConfig()
			res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			return bot.New(cfg, res.DB)
		},
	})
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (overrides CONFIG_PATH)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(serveCmd, keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
