package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	brandinghandler "github.com/zenGate-Global/palmyra-tenancy/domains/branding/be/handler"
	brandingservice "github.com/zenGate-Global/palmyra-tenancy/domains/branding/be/service"
	featureshandler "github.com/zenGate-Global/palmyra-tenancy/domains/features/be/handler"
	featuresservice "github.com/zenGate-Global/palmyra-tenancy/domains/features/be/service"
	domainshandler "github.com/zenGate-Global/palmyra-tenancy/domains/tenant-domains/be/handler"
	domainsservice "github.com/zenGate-Global/palmyra-tenancy/domains/tenant-domains/be/service"
	tenantshandler "github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/handler"
	tenantsrepo "github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/repo"
	tenantsservice "github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/service"
	usershandler "github.com/zenGate-Global/palmyra-tenancy/domains/users/be/handler"
	usersrepo "github.com/zenGate-Global/palmyra-tenancy/domains/users/be/repo"
	usersservice "github.com/zenGate-Global/palmyra-tenancy/domains/users/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/events"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/gcp"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/metrics"
	platformmiddleware "github.com/zenGate-Global/palmyra-tenancy/platform/go/middleware"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/storage"
	tenantmiddleware "github.com/zenGate-Global/palmyra-tenancy/platform/go/tenant/middleware"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL, ApplicationName: "palmyra-api"})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	tenantStore, err := persistence.NewTenantStore(pool)
	if err != nil {
		logger.Fatal("init tenant store", zap.Error(err))
	}
	profileStore, err := persistence.NewProfileStore(pool)
	if err != nil {
		logger.Fatal("init profile store", zap.Error(err))
	}
	featureStore, err := persistence.NewFeatureStore(pool)
	if err != nil {
		logger.Fatal("init feature store", zap.Error(err))
	}
	domainStore, err := persistence.NewDomainStore(pool)
	if err != nil {
		logger.Fatal("init domain store", zap.Error(err))
	}
	brandingStore, err := persistence.NewBrandingStore(pool)
	if err != nil {
		logger.Fatal("init branding store", zap.Error(err))
	}

	appMetrics := metrics.New()
	auth := buildAuth(ctx, cfg, pool, logger)

	// ---- Asset storage ----
	var bucket storage.Bucket
	var localAssets *storage.LocalBucket
	switch cfg.StorageBackend {
	case "gcs":
		gcsClient, err := gcp.NewStorageClient(ctx, cfg.GCP)
		if err != nil {
			logger.Fatal("init gcs client", zap.Error(err))
		}
		defer gcsClient.Close()
		bucket = storage.NewGCSBucket(gcsClient, cfg.StoragePublicBaseURL)
	case "local":
		localAssets, err = storage.NewLocalBucket(cfg.StorageLocalDir, cfg.assetsBaseURL())
		if err != nil {
			logger.Fatal("init local storage", zap.Error(err))
		}
		bucket = localAssets
	}

	// ---- Tenants ----
	deletePolicy, err := tenantsservice.ParseDeletePolicy(cfg.TenantDeletePolicy)
	if err != nil {
		logger.Fatal("invalid TENANT_DELETE_POLICY", zap.Error(err))
	}
	tenantService := tenantsservice.New(
		tenantsrepo.NewPostgresRepository(tenantStore),
		tenantsrepo.NewPostgresStats(profileStore, featureStore, domainStore, brandingStore),
		tenantsservice.Config{
			DeletePolicy: deletePolicy,
			Identities:   auth.identities,
			Logger:       logger,
			Metrics:      appMetrics,
		},
	)
	tenantHTTPHandler := tenantshandler.New(tenantService, logger)

	// ---- Users ----
	usersCfg, err := cfg.usersConfig()
	if err != nil {
		logger.Fatal("invalid PROFILE_MODE", zap.Error(err))
	}
	usersDeps := usersservice.Deps{
		Profiles:   usersrepo.NewPostgresRepository(profileStore),
		Tenants:    tenantStore,
		Identities: auth.identities,
		Logger:     logger,
		Metrics:    appMetrics,
	}
	var bus *events.Bus
	if usersCfg.Mode == usersservice.ModeTrigger {
		bus, err = events.Connect(cfg.NATSURL, "palmyra-api", logger)
		if err != nil {
			logger.Fatal("connect nats", zap.Error(err))
		}
		defer func() {
			_ = bus.Close()
		}()
		usersDeps.Events = bus
	}
	userService := usersservice.New(usersDeps, usersCfg)
	userHTTPHandler := usershandler.New(userService, logger)

	// ---- Tenant-scoped resources ----
	featureHTTPHandler := featureshandler.New(featuresservice.New(featureStore, tenantStore, logger), logger)
	domainHTTPHandler := domainshandler.New(domainsservice.New(domainStore, tenantStore, logger), logger)
	brandingHTTPHandler := brandinghandler.New(brandingservice.New(brandingStore, tenantStore, bucket, brandingservice.Config{
		Bucket: cfg.StorageBucket,
		Logger: logger,
	}), logger)

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.CORS(cfg.CORSOrigins),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	checks := []readinessCheck{
		{name: "postgres", check: pool.Ping},
		{name: "storage", check: func(ctx context.Context) error { return bucket.Check(ctx, cfg.StorageBucket, "") }},
	}
	if bus != nil {
		checks = append(checks, readinessCheck{name: "nats", check: func(context.Context) error {
			if !bus.Connected() {
				return errors.New("nats not connected")
			}
			return nil
		}})
	}
	rootRouter.Get("/readyz", readyzHandler(logger, 5*time.Second, checks...))
	rootRouter.Handle("/metrics", appMetrics.Handler())
	if localAssets != nil {
		rootRouter.Handle("/assets/*", http.StripPrefix("/assets", localAssets.Handler()))
	}

	// ---- Public auth routes ----
	authRouter := chi.NewRouter()
	userHTTPHandler.RegisterPublic(authRouter)
	if auth.authenticator != nil {
		sessions := &sessionRoutes{
			authenticator:  auth.authenticator,
			sessions:       auth.sessions,
			cookieName:     cfg.SessionCookieName,
			secureCookie:   cfg.SessionCookieSecure,
			platformTenant: cfg.PlatformAdminTenant,
			logger:         logger,
		}
		sessions.Register(authRouter)
	}
	rootRouter.Mount("/api/auth", authRouter)

	// ---- Admin API ----
	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.middleware)
	adminRouter.Use(platformmiddleware.RequestTrace)
	adminRouter.Use(tenantmiddleware.WithTenantSpace(tenantService, tenantmiddleware.Config{
		CacheTTL: 30 * time.Second,
	}))
	tenantHTTPHandler.Register(adminRouter)
	userHTTPHandler.RegisterAdmin(adminRouter)
	featureHTTPHandler.Register(adminRouter)
	domainHTTPHandler.Register(adminRouter)
	brandingHTTPHandler.Register(adminRouter)
	rootRouter.Mount("/api/admin", adminRouter)

	go tenantService.RunReconciler(ctx, cfg.CounterReconcileInterval)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server",
			zap.String("port", cfg.Port),
			zap.String("auth_provider", cfg.AuthProvider),
			zap.String("profile_mode", string(usersCfg.Mode)),
			zap.String("tenant_delete_policy", string(deletePolicy)),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
