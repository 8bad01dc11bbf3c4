package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tokensentry/tokensentry/internal/application"
	httpapi "github.com/tokensentry/tokensentry/internal/interfaces/http"
)

func runServe(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid --addr port %q: %w", portStr, err)
		}
		config.Server.Host = host
		config.Server.Port = port
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		log.Debug().Str("flag", f.Name).Str("value", f.Value.String()).Msg("flag override")
	})
	fmt.Fprint(cmd.ErrOrStderr(), config.Describe())

	metrics := httpapi.NewMetricsRegistry()
	app, err := application.NewApp(config, metrics)
	if err != nil {
		return err
	}
	defer app.Close()

	server, err := httpapi.NewServer(config.ServerConfig(), httpapi.Deps{
		Assembler: app.Assembler,
		Providers: app.Providers,
		Cache:     app.Cache,
		Budget:    app.Budget,
		DB:        app.DB,
		Metrics:   metrics,
		Version:   version,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
