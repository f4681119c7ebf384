package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fundlink/internal/apperr"
	"fundlink/internal/cache"
	"fundlink/internal/config"
	"fundlink/internal/db"
	"fundlink/internal/domain"
	"fundlink/internal/dwolla"
	"fundlink/internal/email"
	"fundlink/internal/events"
	apihttp "fundlink/internal/http"
	"fundlink/internal/plaidclient"
	"fundlink/internal/repository"
	"fundlink/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	principalRepo := repository.NewPgPrincipalRepository(pool)
	profileRepo := repository.NewPgProfileRepository(pool)
	bankLinkRepo := repository.NewPgBankLinkRepository(pool)
	transferRepo := repository.NewPgTransferRepository(pool)

	var (
		redisClient *redis.Client
		tokenStore  service.RefreshTokenStore
		limiter     service.SignInLimiter
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
			_ = client.Close()
		} else {
			redisClient = client
			tokenStore = service.NewRedisRefreshTokenStore(client)
			limiter = service.NewRedisSignInLimiter(client, cfg.SignInAttemptsWindow, cfg.SignInAttemptsMax)
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewMemorySignInLimiter(cfg.SignInAttemptsWindow, cfg.SignInAttemptsMax)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	publisher := events.NewPublisher(redisClient)
	institutions := cache.NewViewCache[domain.Institution](redisClient, cfg.InstitutionCacheTTL, logger)

	mailer := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUser,
			Password:    cfg.SMTPPass,
			From:        cfg.SMTPFrom,
			FromName:    cfg.SMTPFromName,
			ImplicitTLS: cfg.SMTPUseTLS,
		})
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			mailer = sender
		}
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	plaid := plaidclient.New(plaidclient.Options{
		ClientID:     cfg.PlaidClientID,
		Secret:       cfg.PlaidSecret,
		Env:          cfg.PlaidEnv,
		ClientName:   cfg.PlaidClientName,
		CountryCodes: cfg.PlaidCountryCodes,
		RedirectURI:  cfg.PlaidRedirectURI,
		Timeout:      cfg.ProviderTimeout,
	})
	rail := dwolla.NewClient(cfg.DwollaKey, cfg.DwollaSecret, cfg.DwollaEnv, cfg.ProviderTimeout)

	identityStore := service.NewPgIdentityStore(principalRepo, profileRepo, jwtSvc)
	registrar := service.NewCustomerRegistrar(logger, rail, cfg.ProviderTimeout)
	provisioner := service.NewIdentityProvisioner(logger, identityStore, registrar, limiter, publisher)
	bankLinks := service.NewBankLinkService(logger, plaid, rail, bankLinkRepo, publisher, cfg.ProviderTimeout)
	syncEngine := service.NewSyncEngine(logger, plaid, cfg.ProviderTimeout)
	aggregator := service.NewAccountAggregator(logger, bankLinkRepo, transferRepo, plaid, syncEngine, cfg.ProviderTimeout,
		service.WithInstitutionCache(institutions),
	)
	transfers := service.NewTransferService(logger, rail, bankLinkRepo, transferRepo, profileRepo, publisher, mailer, cfg.ProviderTimeout)

	router := apihttp.NewRouter(logger,
		apihttp.RouterConfig{AllowedOrigins: cfg.CORSAllowedOrigins, Tokens: jwtSvc},
		apihttp.NewAuthHandler(logger, provisioner, jwtSvc),
		apihttp.NewBankHandler(logger, provisioner, bankLinks, aggregator, transfers),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.Strings("error_rules", apperr.RuleNames()))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
