package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Zereker/talentmatch/internal/interview"
	"github.com/Zereker/talentmatch/internal/matching"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/mq"
)

// DefaultMaxBodyBytes caps request bodies, batch uploads included.
const DefaultMaxBodyBytes = 1 << 20

// Server wraps http.Server with the matching API routes.
type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64

	// Topic receives async index events
	Topic string
}

// DefaultServerConfig listens on :8080 with 30s timeouts.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func NewServer(engine *matching.Engine, assistant *interview.Assistant, queue mq.MessageQueue, config ServerConfig) *Server {
	logger := log.Logger("http")
	handler := NewHandler(engine, assistant, queue, config.Topic)

	limit := config.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:         net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
			Handler:      limitBody(limit, handler.Routes(logger)),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
	}
}

// Routes builds the API mux. Middleware runs outermost first:
// cors, request id, recovery, access log.
func (h *Handler) Routes(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return chain(mux,
		cors,
		requestID,
		recoverer(logger),
		accessLog(logger),
	)
}

// Start blocks serving requests; it returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
