package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nordforge/scim-ad-bridge/config"
	"github.com/nordforge/scim-ad-bridge/directory"
	"github.com/nordforge/scim-ad-bridge/provisioner"
	"github.com/nordforge/scim-ad-bridge/store"
	"github.com/nordforge/scim-ad-bridge/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SCIM HTTP listener.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	log := rootLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Bootstrap(ctx); err != nil {
		return err
	}

	audit := db.Audit(log)
	executor := directory.NewExecutor(cfg.ToolExecutable, cfg.DefaultPassword, audit, log)
	executor.Timeout = cfg.ToolTimeout

	proc := &provisioner.Processor{
		Cache:     db.Cache(),
		Directory: executor,
		BaseOU:    cfg.BaseOU,
		BaseURL:   baseURLFor(cfg),
		Logger:    log,
	}

	server := web.NewServer(proc, cfg.APIKey, log, db)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              portAddr(cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		level.Info(log).Log("msg", "listening", "addr", srv.Addr)
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		level.Info(log).Log("msg", "shutdown signal received")
		return srv.Shutdown(context.Background())
	})

	return group.Wait()
}

func portAddr(port int) string {
	if port == 0 {
		port = 8443
	}
	return ":" + strconv.Itoa(port)
}

func baseURLFor(cfg config.Config) string {
	scheme := "http"
	if cfg.TLSCertFile != "" {
		scheme = "https"
	}
	host := cfg.DirectoryServer
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host + ":" + strconv.Itoa(cfg.Port)
}
