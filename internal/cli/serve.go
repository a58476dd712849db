package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/norway-alerts/internal/server"
	"github.com/ogulcanaydogan/norway-alerts/pkg/poller"
	"github.com/ogulcanaydogan/norway-alerts/pkg/publish"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll all instances and serve their sensors",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	pollers, err := initPollers(cfg, cfg.Instances, store, logger)
	if err != nil {
		return err
	}

	hub := server.NewHub(logger)
	sinks := []poller.Sink{hub}

	if cfg.MQTT.Enabled {
		mq := publish.NewMQTT(cfg.MQTT.Publisher(), logger)
		if err := mq.Connect(); err != nil {
			return err
		}
		defer mq.Close()
		sinks = append(sinks, mq)
	}

	sched, err := poller.NewScheduler(pollers, sinks, cfg.Poll.Interval, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Restore(ctx); err != nil {
		return err
	}

	apiServer := server.NewServer(sched, store, hub, logger)
	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go hub.Run(ctx)

	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "listen", cfg.Server.Listen, "instances", len(pollers))
		fmt.Fprintf(os.Stderr, "norway-alerts listening on %s\n", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
		stop()
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("shutdown error: %w", err)
	}
	<-schedDone

	logger.Info("server stopped")
	return serveErr
}
