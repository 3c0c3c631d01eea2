// Command migrate runs the legacy directory import for one tenant from
// the terminal, without going through the HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/escaladev/escala/config"
	"github.com/escaladev/escala/internal/audit"
	"github.com/escaladev/escala/internal/database"
	"github.com/escaladev/escala/internal/firebase"
	"github.com/escaladev/escala/internal/migration"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	companyID := flag.String("company", "", "tenant id to migrate")
	adminEmail := flag.String("admin", "", "email recorded in the audit trail")
	flag.Parse()

	if *companyID == "" || *adminEmail == "" {
		fmt.Fprintln(os.Stderr, "usage: migrate -company <id> -admin <email>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	fb, err := firebase.New(ctx, cfg.Firebase)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase initialization failed")
	}
	defer fb.Close()

	tenant, err := database.New(fb.Firestore).Tenant(*companyID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid tenant")
	}

	tool := migration.New(tenant, audit.NewRecorder(tenant), time.Now)
	migrated, err := tool.Run(ctx, *adminEmail)
	if err != nil {
		log.Fatal().Err(err).Int("migrated", migrated).Msg("migration aborted")
	}

	log.Info().Int("migrated", migrated).Str("company", *companyID).Msg("migration complete")
}
