// Package server exposes the cache over HTTP: a cached landing page, the admin
// endpoints and the rate-limited contact form.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/limit"
)

var ErrNoCache = errors.New("server: cache is required")

// Options are the tunables of the HTTP surface.
type Options struct {
	AdminAPIKey    string        // empty disables auth on /admin (development only)
	PageTTL        time.Duration // 0 => cache default TTL
	RateMax        int64
	RateWindow     time.Duration
	DedupTTL       time.Duration
	RequestTimeout time.Duration
	// Presets are the named TTLs of the deployment. "temporary" is used for
	// self-test keys; the whole set is echoed in the self-test report.
	Presets map[string]time.Duration
	// AdminRate bounds admin calls per second across all clients; 0 => 5.
	AdminRate rate.Limit
}

// Deps are the collaborators the server does not own.
type Deps struct {
	Cache   nscache.Cache
	Log     nscache.Logger
	Pages   PageSource
	Relay   Relay
	Metrics prometheus.Gatherer // nil => no /metrics route
}

type Server struct {
	opts   Options
	cache  nscache.Cache
	log    nscache.Logger
	pages  PageSource
	relay  Relay
	window limit.Window
	once   limit.Once
	router *gin.Engine
}

func New(opts Options, deps Deps) (*Server, error) {
	if deps.Cache == nil {
		return nil, ErrNoCache
	}
	if deps.Log == nil {
		deps.Log = nscache.NopLogger{}
	}
	if deps.Pages == nil {
		deps.Pages = FilePage{Path: "index.html"}
	}
	if deps.Relay == nil {
		deps.Relay = LogRelay{Log: deps.Log}
	}
	if opts.RateMax <= 0 {
		opts.RateMax = 5
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Hour
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 5 * time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.AdminRate <= 0 {
		opts.AdminRate = 5
	}

	s := &Server{
		opts:  opts,
		cache: deps.Cache,
		log:   deps.Log,
		pages: deps.Pages,
		relay: deps.Relay,
		window: limit.Window{
			Cache:     deps.Cache,
			Max:       opts.RateMax,
			Window:    opts.RateWindow,
			KeyPrefix: "rate:contact:",
		},
		once: limit.Once{
			Cache:     deps.Cache,
			TTL:       opts.DedupTTL,
			KeyPrefix: "dedup:contact:",
		},
	}
	if opts.AdminAPIKey == "" {
		s.log.Warn("ADMIN_API_KEY is empty; admin endpoints are unauthenticated", nil)
	}
	s.router = s.routes(deps.Metrics)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(metrics prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(s.log))
	r.Use(SecurityHeadersMiddleware())
	r.Use(TimeoutMiddleware(s.opts.RequestTimeout))

	r.GET("/health", s.health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	}

	r.POST("/api/contact", s.contact)

	admin := r.Group("/admin/cache")
	admin.Use(AuthMiddleware(s.opts.AdminAPIKey))
	admin.Use(ThrottleMiddleware(rate.NewLimiter(s.opts.AdminRate, int(s.opts.AdminRate)+1)))
	{
		admin.POST("/clear", s.clear)
		admin.DELETE("/keys", s.purge)
		admin.GET("/stats", s.stats)
		admin.GET("/selftest", s.selftest)
	}

	r.GET("/", s.page)
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			s.page(c)
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Route not found", Code: http.StatusNotFound})
	})
	return r
}

// health reports cache reachability. An unavailable cache is re-probed here,
// so a load balancer's health checks double as the reconnect loop.
func (s *Server) health(c *gin.Context) {
	available := s.cache.Available()
	if !available {
		available = s.cache.Reconnect(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cache":  available,
		"prefix": s.cache.Prefix(),
	})
}

// ListenAndServe runs the HTTP server until ctx is done, then shuts it down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   s.opts.RequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server starting", nscache.Fields{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server", nil)
	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
