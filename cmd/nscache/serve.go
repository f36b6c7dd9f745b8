package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/internal/server"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  "Serve the cached landing page, the contact form and the admin cache endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if a.cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv, err := server.New(server.Options{
				AdminAPIKey:    a.cfg.Server.AdminAPIKey,
				PageTTL:        a.cfg.Cache.Presets.Page.Std(),
				RateMax:        int64(a.cfg.Form.RateMax),
				RateWindow:     a.cfg.Form.RateWindow.Std(),
				DedupTTL:       a.cfg.Form.DedupTTL.Std(),
				RequestTimeout: a.cfg.Server.RequestTimeout.Std(),
				Presets:        a.cfg.Cache.Presets.Map(),
			}, server.Deps{
				Cache:   a.cache,
				Log:     a.log,
				Pages:   server.FilePage{Path: a.cfg.Server.PageFile},
				Metrics: a.registry,
			})
			if err != nil {
				return err
			}

			a.log.Info("nscache starting", nscache.Fields{
				"addr":            addr,
				"prefix":          a.cache.Prefix(),
				"cache_available": a.cache.Available(),
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "listen", "", "Listen address (default HTTP_ADDR)")
	return cmd
}
