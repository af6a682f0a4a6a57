package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"vhub/internal/collab"
	"vhub/internal/config"
	"vhub/internal/hub"
	"vhub/internal/metrics"
	"vhub/internal/sqlitestore"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to hub.yaml/hub.toml (default search paths if empty)")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger := logrus.New()
	log := logrus.NewEntry(logger)

	var h *hub.Hub
	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		if h != nil {
			h.SetConfig(*next)
			log.Info("configuration reloaded")
		}
	})
	if err != nil {
		return fmt.Errorf("vhubd: load config: %w", err)
	}
	cfg := *watcher.Current()
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	store, err := sqlitestore.New(cfg.Database.Path, log)
	if err != nil {
		return fmt.Errorf("vhubd: open store: %w", err)
	}
	defer store.Close()

	var ipHistory collab.IPHistory = collab.NewMemoryIPHistory(10000)
	m := metrics.New(nil)
	h = hub.New(cfg, log, store, store, collab.NilGeoLookup{}, collab.NilRedirectLookup{}, ipHistory, m)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.Run(gctx)
	})

	ln, err := net.Listen("tcp", cfg.Listen.Addr)
	if err != nil {
		return fmt.Errorf("vhubd: listen %s: %w", cfg.Listen.Addr, err)
	}
	if cfg.Hub.MaxUsers > 0 {
		ln = netutil.LimitListener(ln, cfg.Hub.MaxUsers)
	}
	log.WithField("addr", cfg.Listen.Addr).Info("listening")

	g.Go(func() error {
		return acceptLoop(gctx, ln, h, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	if cfg.Listen.TLSAddr != "" {
		tlsConfig, err := loadOrGenerateTLS(cfg.Listen.TLSCertFile, cfg.Listen.TLSKeyFile, cfg.Listen.TLSAddr)
		if err != nil {
			return fmt.Errorf("vhubd: tls: %w", err)
		}
		tlsLn, err := tls.Listen("tcp", cfg.Listen.TLSAddr, tlsConfig)
		if err != nil {
			return fmt.Errorf("vhubd: tls listen %s: %w", cfg.Listen.TLSAddr, err)
		}
		if cfg.Hub.MaxUsers > 0 {
			tlsLn = netutil.LimitListener(tlsLn, cfg.Hub.MaxUsers)
		}
		log.WithField("addr", cfg.Listen.TLSAddr).Info("listening (TLS)")
		g.Go(func() error {
			return acceptLoop(gctx, tlsLn, h, log)
		})
		g.Go(func() error {
			<-gctx.Done()
			return tlsLn.Close()
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		g.Go(func() error {
			log.WithField("addr", cfg.Metrics.Addr).Info("metrics listening")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricsSrv.Close()
		})
	}

	err = g.Wait()
	if err != nil && gctx.Err() != nil {
		// Shutdown-triggered listener closes surface as errors; the
		// context cancellation is the real signal, not a failure.
		return nil
	}
	return err
}
