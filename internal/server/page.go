package server

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/internal/keys"
)

// PageSource renders the landing page for a request URI.
type PageSource interface {
	Render(ctx context.Context, uri string) ([]byte, error)
}

// FilePage serves one HTML file for every URI.
type FilePage struct{ Path string }

func (p FilePage) Render(_ context.Context, _ string) ([]byte, error) {
	return os.ReadFile(p.Path)
}

// PageKey is the cache key of the rendered page for uri. The query string is
// part of the URI, so tracking parameters get their own entries.
func PageKey(uri string) string { return keys.Hash("page:home", uri) }

func (s *Server) pageTTL() time.Duration {
	if s.opts.PageTTL > 0 {
		return s.opts.PageTTL
	}
	return s.cache.DefaultTTL()
}

func (s *Server) page(c *gin.Context) {
	ctx := c.Request.Context()
	uri := c.Request.URL.RequestURI()
	key := PageKey(uri)
	ttl := s.pageTTL()

	html, ok, err := nscache.GetAs[string](ctx, s.cache, key)
	if err == nil && ok {
		c.Header("X-Cache", "HIT")
		c.Header("X-Cache-Key", key)
		if left, ok, _ := s.cache.TTL(ctx, key); ok && left > 0 {
			c.Header("X-Cache-Age", strconv.Itoa(int((ttl - left).Seconds())))
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
		return
	}

	body, err := s.pages.Render(ctx, uri)
	if err != nil {
		s.log.Error("page render failed", nscache.Fields{"uri": uri, "err": err})
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "render_failed",
			Message: "Page is temporarily unavailable",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if _, err := s.cache.Set(ctx, key, string(body), ttl); err != nil {
		s.log.Warn("page not cached", nscache.Fields{"key": key, "err": err})
	}

	c.Header("X-Cache", "MISS")
	c.Header("X-Cache-TTL", strconv.Itoa(int(ttl.Seconds())))
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}
