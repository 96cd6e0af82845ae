package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/db"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/monitor"
	intnet "github.com/energizer-project/pulse/internal/network"
	"github.com/energizer-project/pulse/internal/util"
)

// History is the stored state the monitor endpoints read.
type History interface {
	Variables(ctx context.Context) (events.Variables, error)
	RecentAlerts(ctx context.Context, limit int) ([]db.Alert, error)
}

// Options carries the optional parts of the API server.
type Options struct {
	Version string
	History History
}

// Server is the REST API server for Pulse.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	plugin   *monitor.Plugin
	history  History
	metrics  *Metrics
	version  string
	logger   zerolog.Logger

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates the API server and attaches its metrics to the bus.
func NewServer(cfg *config.Config, eventBus *events.EventBus, plugin *monitor.Plugin, opts Options) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		eventBus: eventBus,
		plugin:   plugin,
		history:  opts.History,
		metrics:  NewMetrics(),
		version:  opts.Version,
		logger:   util.ComponentLogger("api"),
	}
	if s.version == "" {
		s.version = "dev"
	}

	s.metrics.Attach(eventBus)
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	apiCfg := s.cfg.GetApplicationData().API

	addr := fmt.Sprintf(":%d", apiCfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var tlsConfig *tls.Config
	if apiCfg.TLSEnabled {
		var err error
		if tlsConfig, err = loadTLSConfig(apiCfg); err != nil {
			return err
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.logger.Info().Str("addr", addr).Bool("tls", tlsConfig != nil).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// loadTLSConfig loads the API certificate, generating a self-signed one
// when the configured files do not exist.
func loadTLSConfig(apiCfg config.APIConfig) (*tls.Config, error) {
	if !util.FileExists(apiCfg.TLSCertFile) || !util.FileExists(apiCfg.TLSKeyFile) {
		if err := util.GenerateSelfSignedCert(apiCfg.TLSCertFile, apiCfg.TLSKeyFile, "localhost", "127.0.0.1"); err != nil {
			return nil, fmt.Errorf("failed to generate API certificate: %w", err)
		}
	}

	cert, err := tls.LoadX509KeyPair(apiCfg.TLSCertFile, apiCfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load API certificate: %w", err)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	apiCfg := s.cfg.GetApplicationData().API

	router := gin.New()
	// ClientIP is the socket peer; forwarded headers are not trusted.
	router.SetTrustedProxies(nil)

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(s.metrics.Middleware())
	router.Use(SecurityHeaders())

	allowedOrigins := apiCfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(apiCfg.RateLimitRPS).Middleware())
	router.Use(IPWhitelist(apiCfg.IPWhitelist))

	if apiCfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/version", s.handleGetVersion)
		public.GET("/status", s.handleGetStatus)
	}

	protected := router.Group("/api")
	protected.Use(TokenAuth(func() string {
		return s.cfg.GetApplicationData().API.AuthToken
	}))

	mon := protected.Group("/monitor")
	{
		mon.GET("/variables", s.handleGetVariables)
		mon.GET("/alerts", s.handleGetAlerts)
		mon.GET("/players", s.handleGetPlayers)
		mon.GET("/system", s.handleGetSystem)
	}

	control := protected.Group("/control")
	{
		control.POST("/poll", s.handlePoll)
		control.POST("/start", s.handleStartPolling)
		control.POST("/stop", s.handleStopPolling)
	}

	configure := protected.Group("/configure")
	{
		configure.GET("/get_config", s.handleGetConfig)
		configure.POST("/set_monitor_data", s.handleSetMonitorData)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
