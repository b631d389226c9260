package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/baechuer/miniapp-auth/internal/application/auth"
	"github.com/baechuer/miniapp-auth/internal/audit"
	"github.com/baechuer/miniapp-auth/internal/config"
	"github.com/baechuer/miniapp-auth/internal/infrastructure/db/postgres"
	"github.com/baechuer/miniapp-auth/internal/infrastructure/memory"
	rabbitmq_pub "github.com/baechuer/miniapp-auth/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/miniapp-auth/internal/infrastructure/redis"
	"github.com/baechuer/miniapp-auth/internal/infrastructure/security"
	"github.com/baechuer/miniapp-auth/internal/infrastructure/wechat"
	"github.com/baechuer/miniapp-auth/internal/logger"
	http_handlers "github.com/baechuer/miniapp-auth/internal/transport/http/handlers"
	"github.com/baechuer/miniapp-auth/internal/transport/http/middleware"
	"github.com/baechuer/miniapp-auth/internal/transport/http/response"
	"github.com/baechuer/miniapp-auth/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(addr string, debug bool) (*sql.DB, error)

	// Migrate applies the embedded schema. nil skips migrations.
	Migrate func(ctx context.Context, db *sql.DB) error

	// NewRedis is optional; nil disables login rate limiting.
	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(url, exchange string) (auth.EventPublisher, error)

	NewRouter func(router.Deps) (http.Handler, error)

	// NewIdentityProvider overrides the WeChat client.
	NewIdentityProvider func(cfg *config.Config) auth.IdentityProvider
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 1) db
	db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, errors.New("bootstrap: NewDB returned nil")
	}

	cleanupFns := []func(){
		func() { _ = db.Close() },
	}

	if deps.Migrate != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := deps.Migrate(ctx, db)
		cancel()
		if err != nil {
			runCleanup(cleanupFns)
			return nil, nil, err
		}
	}

	// 2) user directory
	userRepo := postgres.NewUserRepo(db)

	// 3) redis (best-effort)
	var redisCli *redis.Client
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(context.Background()); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; login rate limit disabled")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 4) publisher
	var pub auth.EventPublisher
	if deps.NewPublisher != nil {
		pub, err = deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	} else {
		err = errors.New("bootstrap: no publisher configured")
	}
	if err != nil {
		if cfg.Env == "dev" {
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; logging events instead")
			pub = memory.NewLogPublisher(logger.Logger)
		} else {
			runCleanup(cleanupFns)
			return nil, nil, err
		}
	}

	if c, ok := pub.(interface{ Close() error }); ok {
		cleanupFns = append(cleanupFns, func() { _ = c.Close() })
	}

	// 5) identity provider + signer
	var idp auth.IdentityProvider
	if deps.NewIdentityProvider != nil {
		idp = deps.NewIdentityProvider(cfg)
	} else {
		wc := wechat.NewClient(cfg.WechatAppID, cfg.WechatSecret, cfg.WechatBaseURL, cfg.WechatTimeout)
		if !wc.IsConfigured() {
			logger.Logger.Warn().Msg("wechat app id or secret missing; every login will be rejected upstream")
		}
		idp = wc
	}

	if cfg.JWTSecret == "" {
		logger.Logger.Warn().Msg("JWT_SECRET is empty; logins will fail at signing")
	}
	issuer := security.NewJWTIssuer(cfg.JWTSecret)

	// 6) service
	authSvc := auth.NewService(userRepo, idp, issuer, pub, logger.Logger)

	auditLog := audit.New(logger.Logger)
	authSvc = authSvc.WithAudit(auditLog.Record)

	// 7) handlers + middleware
	authH := http_handlers.NewAuthHandler(authSvc, auditLog)
	healthH := http_handlers.NewHealthHandler(userRepo)

	authMW := middleware.Auth(issuer, response.WriteError)

	// rate limit (fail-open)
	var rlLogin func(http.Handler) http.Handler
	if redisCli != nil && cfg.LoginRateLimit > 0 {
		rlLogin = middleware.RateLimitFixedWindow(
			redis.NewFixedWindowLimiter(redisCli),
			middleware.FixedWindowConfig{
				RouteKey: "auth.login",
				Limit:    cfg.LoginRateLimit,
				Window:   time.Minute,
			},
			response.WriteError,
			logger.Logger,
		)
	}

	// 8) router
	mux, err := deps.NewRouter(router.Deps{
		Health:  healthH,
		Auth:    authH,
		AuthMW:  authMW,
		RLLogin: rlLogin,
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 9) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { runCleanup(cleanupFns) })
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB: func(addr string, debug bool) (*sql.DB, error) {
			return config.NewDB(addr, debug, logger.Logger)
		},
		Migrate: postgres.Migrate,
		NewRedis: func(addr, password string, db int) *redis.Client {
			return redis.New(addr, password, db)
		},
		NewPublisher: func(url, exchange string) (auth.EventPublisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange)
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
