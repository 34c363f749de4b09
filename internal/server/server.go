package server

import (
	"context"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/talentmatch/internal/api/consumer"
	"github.com/Zereker/talentmatch/internal/api/http"
	"github.com/Zereker/talentmatch/internal/api/mcp"
	"github.com/Zereker/talentmatch/internal/interview"
	"github.com/Zereker/talentmatch/internal/matching"
	"github.com/Zereker/talentmatch/pkg/embedding"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/mq"
	"github.com/Zereker/talentmatch/pkg/redis"
	"github.com/Zereker/talentmatch/pkg/vector"
)

// Server represents the matching server
type Server struct {
	config    Config
	logger    *slog.Logger
	redis     *goredis.Client
	embedder  embedding.Embedder
	store     vector.Store
	queue     mq.MessageQueue
	topic     string
	engine    *matching.Engine
	assistant *interview.Assistant
	consumer  *consumer.Consumer
}

// NewServer creates a new server with the given configuration
func NewServer(conf Config) (*Server, error) {
	server := &Server{
		config: conf,
	}

	if err := server.initDepend(); err != nil {
		_ = server.Shutdown()
		return nil, errors.WithMessage(err, "init server dependency failed")
	}

	if err := server.initEngine(); err != nil {
		_ = server.Shutdown()
		return nil, errors.WithMessage(err, "init engine failed")
	}

	if err := server.initConsumer(); err != nil {
		_ = server.Shutdown()
		return nil, errors.WithMessage(err, "init consumer failed")
	}

	return server, nil
}

// initDepend initializes all dependencies
func (s *Server) initDepend() error {
	// Initialize log first
	if err := log.Init(s.config.Log); err != nil {
		return errors.WithMessage(err, "failed to init log")
	}

	// Create logger for this module
	s.logger = log.Logger("server")
	s.logger.Info("initializing dependencies")

	ctx := context.Background()

	s.logger.Info("initializing redis", "enabled", s.config.Redis.Enabled)
	rdb, err := redis.NewClient(ctx, s.config.Redis)
	if err != nil {
		return errors.WithMessage(err, "failed to init redis")
	}
	s.redis = rdb

	s.logger.Info("initializing embedder", "provider", s.config.Embedding.Provider, "dimensions", s.config.Embedding.Dimensions)
	s.embedder, err = newEmbedder(ctx, s.config.Embedding, s.redis)
	if err != nil {
		return errors.WithMessage(err, "failed to init embedder")
	}

	s.logger.Info("initializing store", "backend", s.config.Store.Backend)
	s.store, err = newStore(ctx, s.config.Store, s.config.Embedding.Dimensions)
	if err != nil {
		return errors.WithMessage(err, "failed to init store")
	}

	s.logger.Info("initializing message queue", "kafka", s.config.Kafka.Enabled)
	s.queue, s.topic, err = newQueue(s.config.Kafka)
	if err != nil {
		return errors.WithMessage(err, "failed to init message queue")
	}

	s.logger.Info("initializing interview assistant", "provider", s.config.Interview.Provider)
	s.assistant, err = newAssistant(ctx, s.config.Interview)
	if err != nil {
		return errors.WithMessage(err, "failed to init interview assistant")
	}

	return nil
}

// initEngine initializes the matching engine
func (s *Server) initEngine() error {
	s.logger.Info("initializing engine")
	s.engine = matching.NewEngine(s.embedder, s.store)
	return nil
}

// initConsumer initializes the async index consumer
func (s *Server) initConsumer() error {
	s.logger.Info("initializing consumer")

	c, err := consumer.NewConsumer(s.engine, consumer.Config{
		Kafka: s.config.Kafka,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create consumer")
	}
	s.consumer = c

	// 未启用 kafka 时异步请求走内存队列，同进程消费
	if !s.config.Kafka.Enabled {
		return c.Subscribe(s.queue, s.topic)
	}
	return nil
}

// Start starts the server based on configuration mode
func (s *Server) Start() error {
	s.logger.Info("starting", "mode", s.config.Server.Mode, "port", s.config.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
			s.logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.run(ctx)
}

func (s *Server) run(ctx context.Context) error {
	var surfaces []func(context.Context) error
	switch s.config.Server.Mode {
	case "http":
		surfaces = append(surfaces, s.runHTTPServer)
	case "mcp":
		surfaces = append(surfaces, s.runMCPServer)
	case "both":
		surfaces = append(surfaces, s.runHTTPServer, s.runMCPServer)
	default:
		return errors.Errorf("unknown mode: %s", s.config.Server.Mode)
	}

	g, ctx := errgroup.WithContext(ctx)
	if s.consumer != nil {
		g.Go(func() error {
			return s.runConsumer(ctx)
		})
	}
	for _, run := range surfaces {
		g.Go(func() error {
			return run(ctx)
		})
	}

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	logger := s.logger
	if logger == nil {
		logger = log.Logger("server")
	}
	logger.Info("shutting down")

	// Stop consumer
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			logger.Error("failed to stop consumer", "error", err)
		}
	}

	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			logger.Error("failed to close message queue", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Error("failed to close redis", "error", err)
		}
	}

	return nil
}

func (s *Server) runHTTPServer(ctx context.Context) error {
	serverCfg := http.DefaultServerConfig()
	serverCfg.Port = s.config.Server.Port
	serverCfg.Topic = s.topic
	if s.config.Server.Host != "" {
		serverCfg.Host = s.config.Server.Host
	}
	if d, err := time.ParseDuration(s.config.Server.ReadTimeout); err == nil {
		serverCfg.ReadTimeout = d
	}
	if d, err := time.ParseDuration(s.config.Server.WriteTimeout); err == nil {
		serverCfg.WriteTimeout = d
	}
	if s.config.Server.MaxBodyBytes > 0 {
		serverCfg.MaxBodyBytes = s.config.Server.MaxBodyBytes
	}

	srv := http.NewServer(s.engine, s.assistant, s.queue, serverCfg)

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return errors.WithMessage(err, "http server error")
	}
	return nil
}

func (s *Server) runMCPServer(ctx context.Context) error {
	server := mcp.NewServer(s.engine, mcp.ServerConfig{
		Name:    "talentmatch",
		Version: "0.1.0",
	})

	if err := server.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.WithMessage(err, "mcp server error")
	}
	return nil
}

func (s *Server) runConsumer(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.WithMessage(err, "consumer start error")
	}

	// Wait for context cancellation
	<-ctx.Done()

	return s.consumer.Stop()
}
