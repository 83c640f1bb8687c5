package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/crop_advisor/internal/config"
	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
	"github.com/LeonardoBeccarini/crop_advisor/internal/readings"
	"github.com/LeonardoBeccarini/crop_advisor/internal/services/dashboard"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Follow the feeds and serve the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Debug); err != nil {
		return err
	}

	src, err := cfg.NewSource()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	store := readings.NewStore(reg)
	svc := dashboard.NewService(store, reg)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// === Feed ===
	feedErr := make(chan error, 1)
	go func() {
		log.Infof("dashboard: following %s feed", cfg.Source)
		feedErr <- store.Run(ctx, src)
		cancel()
	}()

	// === HTTP ===
	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           dashboard.NewHTTPMux(svc, src.Connected, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("dashboard: HTTP listening on %s", hs.Addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("dashboard: http server: %v", err)
			cancel()
		}
	}()

	// === gRPC health ===
	gs, health := dashboard.NewGRPCServer()
	go dashboard.WatchHealth(ctx, health, src.Connected, 5*time.Second)
	go func() {
		log.Infof("dashboard: gRPC health listening on %s", lis.Addr())
		if err := gs.Serve(lis); err != nil {
			log.Errorf("dashboard: grpc server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("dashboard: shutting down...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
	gs.GracefulStop()

	return <-feedErr
}
