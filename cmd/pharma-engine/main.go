package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pharmagician/pharma-engine/internal/config"
	"github.com/pharmagician/pharma-engine/internal/logging"
)

var (
	cfgPath string
	cfg     config.Config
	logger  zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "pharma-engine",
		Short:         "Multi-vendor pharmacy price comparison engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is a local-dev convenience; absence is fine.
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger, err = logging.New(cfg.Environment, cfg.LogLevel)
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	root.AddCommand(serveCmd())
	root.AddCommand(reindexCmd())
	root.AddCommand(searchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
