package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dkoleva/inkwell/internal/auth"
	"github.com/dkoleva/inkwell/internal/comments"
	"github.com/dkoleva/inkwell/internal/config"
	"github.com/dkoleva/inkwell/internal/middleware"
	"github.com/dkoleva/inkwell/internal/misc"
	"github.com/dkoleva/inkwell/internal/posts"
	"github.com/dkoleva/inkwell/internal/search"
	"github.com/dkoleva/inkwell/internal/telemetry/metrics"
	"github.com/dkoleva/inkwell/internal/telemetry/tracing"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config       *config.Config
	postsRepo    *posts.Repo
	commentsRepo *comments.Repo
	postsHandler *posts.Handler
	searchIndex  *search.Index
	watcher      *search.Watcher

	redisClient *redis.Client // nil when redis is off
	rateLimiter middleware.RequestRateLimiter
	authService *auth.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	AdminUsername           string
	AdminPasswordHash       string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("inkwell", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0) // will be set to 1 when all is set and ran

	var (
		redisClient  *redis.Client
		sessionStore auth.SessionStore
		rateLimiter  middleware.RequestRateLimiter
	)
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := redisClient.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}

		sessionStore = auth.NewRedisSessionStore(redisClient)
		rateLimiter = redis_rate.NewLimiter(redisClient)
	} else {
		log.Debugln("redis off, using in-process session store and rate limiter")
		sessionStore = auth.NewMemorySessionStore()
		rateLimiter = middleware.NewMemoryRateLimiter()
	}

	authService := auth.NewService(&auth.Admin{
		Username:     params.AdminUsername,
		PasswordHash: params.AdminPasswordHash,
	}, time.Duration(cfg.SessionTTLHours)*time.Hour, sessionStore)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "inkwell-backend")
	if err != nil {
		return nil, err
	}

	postsRepo, err := posts.NewRepo(cfg.PostsDir)
	if err != nil {
		return nil, fmt.Errorf("new posts repo: %w", err)
	}

	commentsRepo, err := comments.NewRepo(cfg.CommentsFilePath)
	if err != nil {
		return nil, fmt.Errorf("new comments repo: %w", err)
	}

	searchIndex, err := search.Open(cfg.SearchIndexDir)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	// documents may have changed on disk while we were down
	if err := searchIndex.Rebuild(ctx, postsRepo); err != nil {
		return nil, fmt.Errorf("rebuild search index: %w", err)
	}

	return &Server{
		config:       cfg,
		versionInfo:  params.VersionInfo,
		postsRepo:    postsRepo,
		commentsRepo: commentsRepo,
		searchIndex:  searchIndex,

		redisClient: redisClient,
		rateLimiter: rateLimiter,
		authService: authService,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	postsHandler := posts.NewHandler(
		s.postsRepo,
		s.searchIndex,
		s.authService,
		s.metricsManager,
	)
	postsHandler.SetupRoutes(r)
	s.postsHandler = postsHandler

	commentsHandler := comments.NewHandler(
		s.commentsRepo,
		s.authService,
		s.metricsManager,
	)
	commentsHandler.SetupRoutes(r)

	searchHandler := search.NewHandler(s.searchIndex, s.metricsManager)
	searchHandler.SetupRoutes(r)

	miscHandler := misc.NewHandler(s.versionInfo, s.authService)
	miscHandler.SetupRoutes(r, s.rateLimiter, s.config.LoginRateLimitAllowedPerMin, s.metricsManager)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.RequestID())
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	watcher, err := search.NewWatcher(
		s.config.PostsDir,
		s.searchIndex,
		s.postsRepo,
		postsHandler.InvalidateCached,
	)
	if err != nil {
		return nil, fmt.Errorf("new posts dir watcher: %w", err)
	}
	s.watcher = watcher

	return r, nil
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	if err := s.watcher.Start(ctx); err != nil {
		log.Fatalf("failed to start posts dir watcher: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.watcher != nil {
		s.watcher.Stop()
		log.Trace("posts dir watcher stopped ...")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if err := s.searchIndex.Close(); err != nil {
		log.Errorf("failed to close search index: %s", err)
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
