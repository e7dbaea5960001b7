package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
)

// cli holds what every subcommand needs once the root pre-run has resolved the config.
type cli struct {
	cfgPath string
	cfg     *config.Config
}

func main() {
	if err := newRootCMD().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCMD() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "pdf-rag",
		Short:         "Retrieval-augmented question answering over PDF documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(os.Stderr, config.LogConfig{Level: "info", Format: "console"})
			cfg, err := config.Load(c.cfgPath)
			if err != nil {
				return err
			}
			setupLogger(os.Stderr, cfg.Log)
			log.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", config.DefaultPath, "config file")

	root.AddCommand(
		serveCMD(c),
		ingestCMD(c),
		askCMD(c),
		reindexCMD(c),
		exportCMD(c),
		importCMD(c),
		dropCMD(c),
	)
	return root
}

func setupLogger(out io.Writer, cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Caller().Logger()
}
