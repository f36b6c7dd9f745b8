package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/config"
	asynchook "github.com/unkn0wn-root/nscache/hooks/async"
	promhooks "github.com/unkn0wn-root/nscache/hooks/prom"
	"github.com/unkn0wn-root/nscache/internal/logging"
)

var errUnavailable = errors.New("cache store is unreachable or caching is disabled")

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	log      nscache.Logger
	cache    nscache.Cache
	registry *prometheus.Registry
	closers  []func()
}

func loadApp(ctx context.Context, g *globalFlags) (*app, error) {
	var envFiles []string
	if g.envFile != "" {
		envFiles = append(envFiles, g.envFile)
	}
	cfg, err := config.Load(g.configPath, envFiles...)
	if err != nil {
		return nil, err
	}
	if g.prefix != "" {
		cfg.Cache.Prefix = g.prefix
	}

	log, flush, err := logging.New(logging.Options{
		Backend:     cfg.Log.Backend,
		Level:       cfg.Log.Level,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, closers: []func(){flush}}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(prometheus.NewGoCollector())
	a.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	prom, err := promhooks.New(a.registry, "nscache", cfg.Cache.Prefix)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	hooks := asynchook.New(prom, 1, 4096)
	a.closers = append([]func(){hooks.Close}, a.closers...)

	opts, err := cfg.Cache.Options(log, hooks)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	c, err := nscache.New(ctx, opts)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.cache = c
	prom.SetAvailable(c.Available())
	return a, nil
}

// requireCache fails commands that cannot do anything without the store.
func (a *app) requireCache() error {
	if !a.cache.Available() {
		return fmt.Errorf("%w (%s:%d)", errUnavailable, a.cfg.Cache.Host, a.cfg.Cache.Port)
	}
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.cache != nil {
		if err := a.cache.Close(ctx); err != nil {
			a.log.Error("error closing cache", nscache.Fields{"err": err})
		}
	}
	for _, f := range a.closers {
		f()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
