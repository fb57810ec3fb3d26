// Package httpapi exposes the publish trigger over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/usecase"
)

const noPendingMessage = "no pending candidate"

// Publisher runs one publish invocation.
type Publisher interface {
	Publish(ctx context.Context) (usecase.PublishResult, error)
}

// Options configure the trigger handler.
type Options struct {
	Path string
	// Preflight reports missing credentials before any I/O happens.
	Preflight func() error
	Timeout   time.Duration
	Logger    *zap.Logger
}

type publishedBody struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishTime time.Time `json:"publishTime"`
}

type responseBody struct {
	Success   bool           `json:"success"`
	Published *publishedBody `json:"published,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// NewRouter builds a gin engine serving GET and POST on opts.Path. Other
// methods on that path get 405.
func NewRouter(pub Publisher, opts Options) *gin.Engine {
	if opts.Path == "" {
		opts.Path = "/"
	}
	log := logging.OrNop(opts.Logger)

	r := gin.New()
	r.Use(gin.Recovery(), accessLog(log))
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, responseBody{Error: "method " + c.Request.Method + " not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, responseBody{Error: "not found"})
	})

	h := &handler{pub: pub, preflight: opts.Preflight, timeout: opts.Timeout, logger: log}
	r.GET(opts.Path, h.publish)
	r.POST(opts.Path, h.publish)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

type handler struct {
	pub       Publisher
	preflight func() error
	timeout   time.Duration
	logger    *zap.Logger
}

func (h *handler) publish(c *gin.Context) {
	if h.preflight != nil {
		if err := h.preflight(); err != nil {
			h.logger.Error("preflight failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, responseBody{Error: err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.pub.Publish(ctx)
	if err != nil {
		h.logger.Error("publish failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, responseBody{Error: err.Error()})
		return
	}
	if res.Candidate == nil {
		c.JSON(http.StatusOK, responseBody{Success: true, Message: noPendingMessage})
		return
	}

	c.JSON(http.StatusOK, responseBody{
		Success: true,
		Published: &publishedBody{
			Title:       res.Candidate.Name,
			URL:         res.Candidate.URL,
			PublishTime: res.PublishedAt,
		},
	})
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
