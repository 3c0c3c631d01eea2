package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/escaladev/escala/config"
	"github.com/escaladev/escala/internal/auth"
	"github.com/escaladev/escala/internal/database"
	"github.com/escaladev/escala/internal/firebase"
	"github.com/escaladev/escala/internal/token"
	"github.com/escaladev/escala/internal/web/handlers"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Server.Env == "production" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()
	fb, err := firebase.New(ctx, cfg.Firebase)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase initialization failed")
	}
	defer fb.Close()

	signingKey := cfg.JWT.SigningKey
	if signingKey == "" {
		signingKey, err = token.GenerateSigningKey()
		if err != nil {
			log.Fatal().Err(err).Msg("signing key generation failed")
		}
		log.Warn().Msg("JWT_SIGNING_KEY not set, sessions will not survive restarts")
	}

	db := database.New(fb.Firestore)
	resolver := auth.NewResolver(fb.Auth, db)
	tokens := token.New(signingKey, cfg.JWT.Issuer)

	h := handlers.New(
		db,
		resolver,
		tokens,
		time.Duration(cfg.Auth.SessionTTLSeconds)*time.Second,
		cfg.Auth.LoginRatePerSec,
		cfg.Auth.LoginRateBurst,
	)
	defer h.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handlers.Logging)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Mount("/api", h.Routes())

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	log.Info().Str("addr", addr).Str("env", cfg.Server.Env).Msg("escala server starting")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}
