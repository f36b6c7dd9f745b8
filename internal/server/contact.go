package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/nscache"
)

// ContactRequest is the landing page form.
type ContactRequest struct {
	Company   string `json:"company" binding:"required,max=200"`
	Name      string `json:"name" binding:"required,max=200"`
	Phone     string `json:"phone" binding:"required,max=50"`
	Email     string `json:"email" binding:"required,email,max=254"`
	Service   string `json:"service" binding:"required,max=200"`
	Timestamp string `json:"timestamp"`
}

// Submission is an accepted form, ready for delivery.
type Submission struct {
	ID         string         `json:"id"`
	Form       ContactRequest `json:"form"`
	ClientIP   string         `json:"client_ip"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Relay delivers accepted submissions (mail, CRM, queue).
type Relay interface {
	Deliver(ctx context.Context, sub Submission) error
}

// LogRelay writes submissions to the log.
type LogRelay struct{ Log nscache.Logger }

func (r LogRelay) Deliver(_ context.Context, sub Submission) error {
	r.Log.Info("contact submission", nscache.Fields{
		"id":      sub.ID,
		"email":   sub.Form.Email,
		"service": sub.Form.Service,
	})
	return nil
}

type ContactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

func (s *Server) contact(c *gin.Context) {
	ctx := c.Request.Context()

	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	ip := c.ClientIP()
	d, err := s.window.Allow(ctx, ip)
	if err != nil {
		s.log.Error("rate limit check failed", nscache.Fields{"ip": ip, "err": err})
	} else if !d.Allowed {
		c.Header("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
		abortJSON(c, http.StatusTooManyRequests, "rate_limit_exceeded", "Please wait before submitting again")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	first, err := s.once.Claim(ctx, email)
	if err != nil {
		s.log.Error("duplicate check failed", nscache.Fields{"err": err})
	} else if !first {
		abortJSON(c, http.StatusConflict, "duplicate_submission", "This request was already received")
		return
	}

	sub := Submission{
		ID:         uuid.NewString(),
		Form:       req,
		ClientIP:   ip,
		ReceivedAt: time.Now().UTC(),
	}
	if sub.Form.Timestamp == "" {
		sub.Form.Timestamp = sub.ReceivedAt.Format(time.DateTime)
	}
	if err := s.relay.Deliver(ctx, sub); err != nil {
		s.log.Error("contact delivery failed", nscache.Fields{"id": sub.ID, "err": err})
		// let the sender retry right away
		_, _ = s.cache.Delete(ctx, s.once.KeyPrefix+email)
		abortJSON(c, http.StatusInternalServerError, "delivery_failed", "Failed to send. Please try again later.")
		return
	}

	c.JSON(http.StatusOK, ContactResponse{Success: true, Message: "Request received", ID: sub.ID})
}
