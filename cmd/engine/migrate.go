package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/skeptomenos/portfolio-prism-engine/internal/config"
	"github.com/skeptomenos/portfolio-prism-engine/internal/store"
)

// runMigrate applies every pending migration and exits. store.Open runs
// migrations as part of opening the database, so this is just open-then-close.
func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	log.Info().Str("path", cfg.StorePath()).Msg("migrations applied")
	return nil
}
