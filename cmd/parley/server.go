package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/parley/api/handlers"
	"github.com/BaSui01/parley/config"
	"github.com/BaSui01/parley/internal/server"
	"github.com/BaSui01/parley/internal/telemetry"
	"github.com/BaSui01/parley/invoker"
	"github.com/BaSui01/parley/session"
	"github.com/BaSui01/parley/store"
)

// Server assembles the whole service: store, gateway, session manager,
// handlers, middleware, and the HTTP and metrics listeners.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	logLevel   zap.AtomicLevel
	providers  *telemetry.Providers

	st      store.SessionStore
	mgr     *session.Manager
	watcher *config.Watcher

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler  *handlers.HealthHandler
	sessionHandler *handlers.SessionHandler
	presetHandler  *handlers.PresetHandler

	rateLimiterCancel context.CancelFunc
}

// NewServer creates a server from a validated config. The level handle is
// the one the process logger was built with; the config watcher drives it.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, logLevel zap.AtomicLevel, providers *telemetry.Providers) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		logLevel:   logLevel,
		providers:  providers,
	}
}

// Start brings every component up. Listeners are non-blocking; pair with
// WaitForShutdown.
func (s *Server) Start() error {
	if err := s.initComponents(); err != nil {
		return fmt.Errorf("init components: %w", err)
	}
	if err := s.initWatcher(); err != nil {
		return fmt.Errorf("init config watcher: %w", err)
	}
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.String("http_addr", s.cfg.Server.Addr),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr),
		zap.String("store", string(s.cfg.Store.Type)),
		zap.Bool("watch_config", s.configPath != ""),
	)
	return nil
}

// initComponents builds the store, the model gateway, the session manager,
// and the handlers in dependency order.
func (s *Server) initComponents() error {
	st, err := store.New(s.cfg.Store, s.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.st = st

	gateway := invoker.NewGateway(s.cfg.Gateway, s.logger)

	mgr, err := session.NewManager(session.Options{
		Invoker: gateway,
		Store:   st,
		Logger:  s.logger,
	})
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	s.mgr = mgr

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("store", st.Ping))

	s.sessionHandler = handlers.NewSessionHandler(mgr, handlers.EngineDefaults{
		MaxParallel:     s.cfg.Engine.MaxParallel,
		DispatchTimeout: s.cfg.Engine.DispatchTimeout,
		EventBuffer:     s.cfg.Engine.EventBuffer,
		WSOrigins:       s.cfg.Server.CORSOrigins,
	}, s.logger)
	s.presetHandler = handlers.NewPresetHandler(mgr, s.logger)

	s.logger.Info("components initialized",
		zap.String("gateway", s.cfg.Gateway.BaseURL))
	return nil
}

// initWatcher follows the config file and applies log-level changes live.
// Everything else in the file still needs a restart.
func (s *Server) initWatcher() error {
	if s.configPath == "" {
		return nil
	}

	w, err := config.NewWatcher([]string{s.configPath}, config.WithWatcherLogger(s.logger))
	if err != nil {
		return err
	}
	w.OnChange(func(ev config.FileEvent) {
		cfg, err := config.NewLoader().WithConfigPath(s.configPath).Load()
		if err != nil {
			s.logger.Warn("config reload failed", zap.Error(err))
			return
		}
		newLevel := parseLogLevel(cfg.Log.Level)
		if s.logLevel.Level() != newLevel {
			s.logLevel.SetLevel(newLevel)
			s.logger.Info("log level changed", zap.String("level", cfg.Log.Level))
		}
	})
	if err := w.Start(context.Background()); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// startHTTPServer mounts the API routes behind the middleware chain and
// starts the main listener.
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /api/v1/sessions", s.sessionHandler.HandleStart)
	mux.HandleFunc("GET /api/v1/sessions", s.sessionHandler.HandleList)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.sessionHandler.HandleGet)
	mux.HandleFunc("POST /api/v1/sessions/{id}/cancel", s.sessionHandler.HandleCancel)
	mux.HandleFunc("POST /api/v1/sessions/{id}/resume", s.sessionHandler.HandleResume)
	mux.HandleFunc("GET /api/v1/sessions/{id}/events", s.sessionHandler.HandleEvents)

	mux.HandleFunc("POST /api/v1/presets", s.presetHandler.HandleSave)
	mux.HandleFunc("GET /api/v1/presets", s.presetHandler.HandleList)
	mux.HandleFunc("GET /api/v1/presets/{filename}", s.presetHandler.HandleGet)
	mux.HandleFunc("DELETE /api/v1/presets/{filename}", s.presetHandler.HandleDelete)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares,
		CORS(s.cfg.Server.CORSOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)
	switch {
	case len(s.cfg.Server.APIKeys) > 0:
		middlewares = append(middlewares, APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger))
	case s.cfg.Server.JWTSecret != "":
		middlewares = append(middlewares, JWTAuth(s.cfg.Server.JWTSecret, skipAuthPaths, s.logger))
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            s.cfg.Server.Addr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  s.cfg.Server.MaxHeaderBytes,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		MaxConns:        s.cfg.Server.MaxConns,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if s.cfg.Server.TLSCertFile != "" {
		if err := s.httpManager.StartTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile); err != nil {
			return err
		}
	} else {
		if err := s.httpManager.Start(); err != nil {
			return err
		}
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.httpManager.Addr()))
	return nil
}

// startMetricsServer exposes Prometheus metrics on their own listener so
// the scrape path never passes through API auth.
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsAddr == "" {
		s.logger.Info("metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            s.cfg.Server.MetricsAddr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.String("addr", s.metricsManager.Addr()))
	return nil
}

// WaitForShutdown blocks until a signal or server error, then tears the
// service down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops components in reverse dependency order: listeners first so
// no new sessions arrive, then the session manager drains, then storage and
// telemetry close.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.mgr != nil {
		if err := s.mgr.Close(ctx); err != nil {
			s.logger.Error("session manager shutdown error", zap.Error(err))
		}
	}
	if s.st != nil {
		if err := s.st.Close(); err != nil {
			s.logger.Error("store close error", zap.Error(err))
		}
	}
	if s.providers != nil {
		if err := s.providers.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
