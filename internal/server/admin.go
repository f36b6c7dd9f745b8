package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/internal/selftest"
)

const clearPreview = 20

type ClearResponse struct {
	Prefix     string   `json:"prefix"`
	KeysBefore int      `json:"keys_before"`
	Deleted    int64    `json:"deleted"`
	KeysAfter  int      `json:"keys_after"`
	Cleared    []string `json:"cleared"`
	More       int      `json:"more,omitempty"`
}

func (s *Server) unavailable(c *gin.Context) bool {
	if s.cache.Available() {
		return false
	}
	abortJSON(c, http.StatusServiceUnavailable, "cache_unavailable", "Cache system is not connected")
	return true
}

// clear flushes every key under the prefix and reports a preview of what went.
func (s *Server) clear(c *gin.Context) {
	if s.unavailable(c) {
		return
	}
	ctx := c.Request.Context()

	before := s.cache.Stats(ctx)
	deleted, err := s.cache.Flush(ctx)
	if err != nil {
		abortJSON(c, http.StatusInternalServerError, "flush_failed", err.Error())
		return
	}
	after := s.cache.Stats(ctx)

	resp := ClearResponse{
		Prefix:     s.cache.Prefix(),
		KeysBefore: before.TotalKeys,
		Deleted:    deleted,
		KeysAfter:  after.TotalKeys,
		Cleared:    before.Keys,
	}
	if len(resp.Cleared) > clearPreview {
		resp.More = len(resp.Cleared) - clearPreview
		resp.Cleared = resp.Cleared[:clearPreview]
	}
	s.log.Info("cache cleared via admin", nscache.Fields{"deleted": deleted, "ip": c.ClientIP()})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) purge(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		abortJSON(c, http.StatusBadRequest, "invalid_request", "pattern is required")
		return
	}
	if s.unavailable(c) {
		return
	}
	n, err := s.cache.DeletePattern(c.Request.Context(), pattern)
	if err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"pattern": pattern, "deleted": n})
}

func (s *Server) stats(c *gin.Context) {
	st := s.cache.Stats(c.Request.Context())
	code := http.StatusOK
	if st.Status == nscache.StatusError {
		code = http.StatusBadGateway
	}
	c.JSON(code, st)
}

func (s *Server) selftest(c *gin.Context) {
	n := selftest.DefaultIterations
	if q := c.Query("iterations"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 || v > selftest.MaxIterations {
			abortJSON(c, http.StatusBadRequest, "invalid_request",
				"iterations must be between 1 and "+strconv.Itoa(selftest.MaxIterations))
			return
		}
		n = v
	}
	r := selftest.Runner{TTL: s.opts.Presets["temporary"], Presets: s.opts.Presets}
	rep, err := r.Run(c.Request.Context(), s.cache, n)
	if err != nil {
		abortJSON(c, http.StatusInternalServerError, "selftest_failed", err.Error())
		return
	}
	code := http.StatusOK
	if !rep.Passed() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, rep)
}
