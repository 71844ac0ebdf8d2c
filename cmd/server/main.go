package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robertwalker/planning-game-server/internal/api"
	"github.com/robertwalker/planning-game-server/internal/archive"
	"github.com/robertwalker/planning-game-server/internal/archive/sqlite"
	"github.com/robertwalker/planning-game-server/internal/config"
	"github.com/robertwalker/planning-game-server/internal/router"
	"github.com/robertwalker/planning-game-server/internal/session"
	"github.com/robertwalker/planning-game-server/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const version = "v1.0.0-dev"

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Planning Game Server - real-time planning poker

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                    Port to listen on (default: 8080)
  LOG_LEVEL               debug, info, warn or error (default: info)
  LOG_FORMAT              console or json (default: console)
  SESSION_QUEUE_SIZE      Pending commands per game before SessionBusy (default: 64)
  SESSION_IDLE_TIMEOUT    Drop games with nobody attached after this long (default: 30m)
  SESSION_REAP_INTERVAL   How often to look for idle games (default: 1m)
  ARCHIVE_DRIVER          none, file or sqlite (default: none)
  ARCHIVE_FILE            Results file for the file driver (default: ./planning-results.txt)
  ARCHIVE_DB              Database for the sqlite driver (default: ./planning.db)
  ADMIN_USER              Admin API username for basic auth
  ADMIN_PASS              Admin API password for basic auth
  WS_ALLOWED_ORIGINS      Comma-separated origins allowed to connect (default: any)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("planning-game-server %s\n", version)
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	setupLogging(cfg)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat != "json" {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = log.Output(cw)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := &api.Handler{}
	if cfg.AdminEnabled() {
		handler.Admin = gin.Accounts{cfg.AdminUser: cfg.AdminPass}
		log.Info().Str("user", cfg.AdminUser).Msg("admin routes enabled")
	}
	var archiver archive.Archiver = archive.Nop{}
	switch cfg.ArchiveDriver {
	case config.ArchiveFile:
		archiver = archive.NewFile(cfg.ArchiveFile)
		log.Info().Str("path", cfg.ArchiveFile).Msg("archiving results to file")
	case config.ArchiveSQLite:
		store, err := sqlite.Open(cfg.ArchiveDB)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()
		archiver = store
		handler.Archive = store
		log.Info().Str("path", cfg.ArchiveDB).Msg("archiving results to sqlite")
	}

	reg := session.NewRegistry(
		session.WithQueueSize(cfg.SessionQueueSize),
		session.WithIdleTimeout(cfg.SessionIdleTimeout),
		session.WithArchiver(archiver),
	)
	handler.Sessions = reg
	rt := router.New(reg)
	go reg.RunReaper(ctx, cfg.SessionReapEvery)

	// Gin setup with custom logger (skip socket noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestLogger())
	handler.Register(r)

	sock := ws.New(rt, cfg.AllowedOrigins)
	io := sock.Mount(r)
	defer io.Close()
	sock.MountWebSocket(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := reg.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("drain sessions: %w", err)
	}
	return nil
}
