package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clarkflip/pf-verify/internal/api"
	"github.com/clarkflip/pf-verify/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the verification HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			db, err := a.openStore()
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			cache, closeCache, err := a.openCache()
			if err != nil {
				return err
			}
			defer closeCache()
			pub, err := a.openPublisher()
			if err != nil {
				return err
			}
			defer pub.Close()

			srv := api.NewServer(api.Options{
				DB:             db,
				Cache:          cache,
				Publisher:      pub,
				Convention:     a.conv,
				BatchWorkers:   a.cfg.Engine.BatchWorkers,
				ScanWorkers:    a.cfg.Engine.ScanWorkers,
				RequestTimeout: a.cfg.Server.RequestTimeout,
				Logger:         logger.L(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("serving",
				"addr", addr,
				"float_convention", string(a.conv),
				"store", a.cfg.Store.Path != "",
				"cache", cache != nil,
				"nats", a.cfg.NATS.URL != "",
			)
			return srv.ListenAndServe(ctx, addr, a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, shutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
