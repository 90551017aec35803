package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/translator/internal/cli"
	"horse.fit/translator/internal/httpapi"
	"horse.fit/translator/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	noResume := fs.Bool("no-resume", false, "Do not resume jobs left running by a previous process")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, err := loadEnvironment(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	rt, err := openRuntime(dbCtx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to initialize")
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	if !*noResume {
		if _, err := rt.jobs.Bootstrap(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to resume batch jobs")
		}
	}

	srv := httpapi.NewServer(httpapi.Services{
		Jobs:     rt.jobs,
		Entities: rt.entities,
		Updates:  rt.updates,
		Tracker:  rt.tracker,
		Report:   rt.report,
		Content:  rt.pool,
		Schemas:  rt.schemas,
		Metrics:  rt.metrics,
	}, logging.Component(logger, "http"), httpapi.Options{
		Host:               *host,
		Port:               *port,
		ReadTimeout:        *readTimeout,
		WriteTimeout:       *writeTimeout,
		ShutdownTimeout:    *shutdownTimeout,
		AdminTokenHash:     cfg.AdminTokenHash,
		CORSAllowedOrigins: cfg.CORSAllowedOriginsList(),
		Locales:            cfg.LocaleList(),
	})

	serveErr := srv.Start(ctx)

	destroyCtx, destroyCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer destroyCancel()
	if err := rt.jobs.Destroy(destroyCtx); err != nil {
		logger.Error().Err(err).Msg("batch jobs did not stop before shutdown timeout")
	}

	if serveErr != nil {
		logger.Error().Err(serveErr).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", serveErr)
		return 1
	}
	return 0
}
