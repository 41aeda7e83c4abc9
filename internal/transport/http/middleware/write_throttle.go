package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/ticket-tracker/internal/repository/redis"
)

// ThrottleStore records attempts in a sliding window.
type ThrottleStore interface {
	Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (redis.ThrottleDecision, error)
}

// ProblemDetails is the RFC 9457 body returned with 429 responses.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// WriteThrottle limits mutating requests per authenticated caller.
type WriteThrottle struct {
	store  ThrottleStore
	limit  int
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewWriteThrottle builds the throttle. A nil store, zero limit or zero window disables it.
func NewWriteThrottle(store ThrottleStore, limit int, window time.Duration, logger *zap.Logger) *WriteThrottle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WriteThrottle{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (w *WriteThrottle) WithClock(now func() time.Time) *WriteThrottle {
	if now != nil {
		w.now = now
	}
	return w
}

// Handler must run after RequireAuth. Safe methods pass through untouched, as do requests
// whose throttle check fails on the store.
func (w *WriteThrottle) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if w == nil || w.store == nil || w.limit <= 0 || w.window <= 0 || !isMutation(c.Request.Method) {
			c.Next()
			return
		}

		userID, ok := GetAuthenticatedUserID(c)
		if !ok {
			c.Next()
			return
		}

		now := w.now()
		decision, err := w.store.Hit(c.Request.Context(), userID, w.limit, w.window, now)
		if err != nil {
			w.logger.Warn("write throttle check failed", zap.String("user_id", userID), zap.Error(err))
			c.Next()
			return
		}

		retryAfter := decision.Reset.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		retrySeconds := int(math.Ceil(retryAfter.Seconds()))

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(w.limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(w.limit-decision.Count, 0)))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

		if decision.Allowed {
			c.Next()
			return
		}

		headers.Set("Retry-After", strconv.Itoa(retrySeconds))

		instance := c.FullPath()
		if instance == "" {
			instance = c.Request.URL.Path
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
			Type:       "about:blank",
			Title:      "Too Many Requests",
			Status:     http.StatusTooManyRequests,
			Detail:     fmt.Sprintf("Too many changes. Try again in %d seconds.", retrySeconds),
			Instance:   instance,
			RetryAfter: retrySeconds,
			TraceID:    GetTraceID(c),
		})
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
