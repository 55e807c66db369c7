package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/course"
	"github.com/jackzampolin/quill/internal/credits"
	"github.com/jackzampolin/quill/internal/home"
	"github.com/jackzampolin/quill/internal/llmcall"
	"github.com/jackzampolin/quill/internal/providers"
	"github.com/jackzampolin/quill/internal/server/endpoints"
	"github.com/jackzampolin/quill/internal/svcctx"
)

// Server is the Quill HTTP server. It owns the LLM registry, the credit bank
// and the call journal, and rebuilds the first two when the config changes.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	registry   *providers.Registry
	configMgr  *config.Manager
	store      *llmcall.Store
	recorder   *llmcall.Recorder
	limiter    *clientLimiter
	logger     *slog.Logger

	// services is swapped as a whole on config reload.
	services atomic.Pointer[svcctx.Services]

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu        sync.RWMutex
	running   bool
	closeOnce sync.Once
}

// Config holds server configuration.
type Config struct {
	// ConfigManager provides configuration with hot-reload support (required)
	ConfigManager *config.Manager
	// Host overrides server.host
	Host string
	// Port overrides server.port
	Port string
	// JournalPath overrides journal.path; ":memory:" keeps the journal in memory
	JournalPath string
	// LLM replaces the configured Groq client (tests)
	LLM providers.LLMClient
	// Home is the quill home directory
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server. It fails when the credit bank cannot be built,
// e.g. a production environment without a credits secret.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := cfg.ConfigManager.Get()
	host := cfg.Host
	if host == "" {
		host = c.Server.Host
	}
	port := cfg.Port
	if port == "" {
		port = strconv.Itoa(c.Server.Port)
	}

	bank, err := credits.NewBank(c.ToCreditsConfig(), cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create credit bank: %w", err)
	}

	registry := providers.NewRegistryFromConfig(c.ToGroqConfig(), cfg.Logger)
	if cfg.LLM != nil {
		registry.Register(cfg.LLM)
	}

	s := &Server{
		registry:  registry,
		configMgr: cfg.ConfigManager,
		limiter:   newClientLimiter(c.Server.ClientRateLimit, c.Server.ClientBurst),
		logger:    cfg.Logger,
	}

	if c.Journal.Enabled {
		path := cfg.JournalPath
		if path == "" {
			path = c.JournalPath()
		}
		store, err := llmcall.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		s.store = store
		s.recorder = llmcall.NewRecorder(llmcall.RecorderConfig{Store: store, Logger: cfg.Logger})
		cfg.Logger.Info("LLM call journal enabled", "path", path)
	}

	resolver := course.NewResolver()
	s.services.Store(&svcctx.Services{
		Bank:     bank,
		Registry: registry,
		Courses: course.NewService(course.Config{
			LLM:      registry,
			Prompts:  resolver,
			Recorder: s.recorder,
			Logger:   cfg.Logger,
		}),
		PromptResolver: resolver,
		LLMCallStore:   s.store,
		ConfigManager:  cfg.ConfigManager,
		Logger:         cfg.Logger,
		Home:           cfg.Home,
	})

	cfg.ConfigManager.OnChange(func(c *config.Config) {
		if cfg.LLM == nil {
			registry.Reload(c.ToGroqConfig())
		}
		s.reloadBank(c)
		s.limiter.setLimit(c.Server.ClientRateLimit, c.Server.ClientBurst)
	})

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.rateLimit)
	s.handler = s.withServices(s.logRequests(mux))

	// Chapter generation can walk several models with retries.
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(host, port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// reloadBank swaps in a bank built from c. A config that cannot produce a
// bank leaves the current one in place.
func (s *Server) reloadBank(c *config.Config) {
	bank, err := credits.NewBank(c.ToCreditsConfig(), s.logger)
	if err != nil {
		s.logger.Error("credit bank not reloaded", "error", err)
		return
	}
	next := *s.services.Load()
	next.Bank = bank
	s.services.Store(&next)
	s.logger.Info("credit bank reloaded from config",
		"initial", bank.InitialCredits(),
		"topup_allowed", bank.TopupAllowed())
}

// Start serves HTTP until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String(), "llm", s.registry.Name())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown drains HTTP, flushes the journal and closes it.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.Close()
	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

// Close stops the journal writer and closes the journal. Start calls it on
// shutdown; callers that only use Handler must call it themselves.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.recorder.Stop()
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.logger.Error("journal close error", "error", err)
			}
		}
	})
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the full HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Services returns the services currently injected into requests.
func (s *Server) Services() *svcctx.Services {
	return s.services.Load()
}
