// Package api serves an inference engine over an OpenAI-compatible HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/Spaarsh/oumi/internal/logger"
)

type Server struct {
	provider EngineProvider
	clock    func() time.Time
	// imageClient downloads http(s) image_url parts. Nil means http.DefaultClient.
	imageClient *http.Client
	log         logger.Logger
}

type Option func(*Server)

func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

func WithImageClient(client *http.Client) Option {
	return func(s *Server) { s.imageClient = client }
}

func NewServer(provider EngineProvider, opts ...Option) *Server {
	s := &Server{
		provider: provider,
		clock:    time.Now,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	s.RegisterChatCompletions(e)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
