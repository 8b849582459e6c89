package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "milletsmon/contracts/mq"
	"milletsmon/internal/backend"
	"milletsmon/internal/config"
	"milletsmon/internal/handler"
	"milletsmon/internal/httpserver"
	"milletsmon/internal/model"
	"milletsmon/internal/mqhandler"
	"milletsmon/internal/objectstore"
	"milletsmon/internal/report"
	"milletsmon/internal/scheduler"
	"milletsmon/internal/store"
	"milletsmon/internal/upload"
	"milletsmon/internal/validation"
	"milletsmon/pkg/circuitbreaker"
	pkgconfig "milletsmon/pkg/config"
	"milletsmon/pkg/db"
	"milletsmon/pkg/logger"
	"milletsmon/pkg/mq"
	"milletsmon/pkg/otel"
	redisclient "milletsmon/pkg/redis"
	"milletsmon/pkg/util"
)

func main() {
	log := logger.NewLogger("millets-portal")
	defer log.Sync()

	cfg, err := config.Load(pkgconfig.GetConfigEnv(), pkgconfig.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting millets portal...",
		zap.String("instance", cfg.Instance),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("storage_mode", cfg.Storage.Mode),
	)

	shutdownTracing, err := otel.Init(cfg.OTel, cfg.Instance, log)
	if err != nil {
		log.Warn("Failed to init tracing, continuing without it", zap.Error(err))
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	// DB（报表存储）
	dbConn, err := db.NewConnection(context.Background(), cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	reportRepo := report.NewRepository(dbConn, log)
	if err := reportRepo.EnsureSchema(context.Background()); err != nil {
		log.Fatal("Failed to ensure report schema", zap.Error(err))
	}

	// Redis（集合快照、会话、事件去重）
	rdb, err := redisclient.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.Instance)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	client := backend.NewClient(cfg.Backend, log)
	persister := store.NewRedisPersister(rdb, "millets:")
	notifier := mqhandler.NewCachePublisher(publisher, cfg.Instance)

	opts := store.Options{
		TTL:         cfg.Store.TTL,
		Persister:   persister,
		PersistTTL:  cfg.Store.PersistTTL,
		LoadTimeout: cfg.Store.LoadTimeout,
		Logger:      log,
	}
	projects := store.NewProjectStore(client, opts, notifier)
	activities := store.NewActivityStores(client, opts, notifier)
	content := store.NewContentStores(client, opts, notifier)
	categoryOpts := opts
	categoryOpts.TTL = cfg.Store.CategoryTTL
	categories := store.NewCategoryStore(client, categoryOpts)
	auth := store.NewAuthStore(client, persister, store.AuthConfig{
		JWTSecret:       cfg.JWT.Secret,
		SessionTTL:      cfg.JWT.TTL,
		RefreshInterval: cfg.Session.UserRefreshInterval,
		RecheckInterval: cfg.Session.RecheckInterval,
	}, log)
	auth.SetNotifier(notifier)

	registry := store.NewRegistry()
	registry.Register(store.CollectionProjects, projects)
	registry.Register(store.CollectionCategories, categories)
	registry.Register(store.CollectionSessions, auth)
	activities.Register(registry)
	content.Register(registry)

	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 10*time.Second)
	for name, restore := range map[string]func(context.Context) error{
		"activities": activities.Restore,
		"content":    content.Restore,
		"categories": categories.Restore,
	} {
		if err := restore(restoreCtx); err != nil {
			log.Warn("Failed to restore snapshot", zap.String("group", name), zap.Error(err))
		}
	}
	restoreCancel()

	// MQ Consumer：每个实例一个独占队列
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	invalidatedHandler := mqhandler.NewCacheInvalidatedHandler(registry, util.NewDeduper(rdb, "millets:", time.Hour, log), cfg.Instance, log)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, mq.ConsumerOptions{
		Queue:      mqcontracts.RoutingKeyCacheInvalidated + "." + cfg.Instance,
		RoutingKey: mqcontracts.RoutingKeyCacheInvalidated,
		Exclusive:  true,
	}, invalidatedHandler.Handle, log)
	if err != nil {
		log.Fatal("Failed to init cache.invalidated consumer", zap.Error(err))
	}
	defer consumer.Close()

	go func() {
		if err := consumer.StartConsuming(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("cache.invalidated consumer stopped", zap.Error(err))
		}
	}()

	// 定时刷新公开集合
	sched := scheduler.New(cfg.Store.RefreshCron, cfg.Store.RefreshTimeout, log, refreshJobs(projects, content, categories)...)
	if err := sched.Start(); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// 上传：签名地址来自后端或直接由 S3 预签名
	var signer upload.Signer = client
	if cfg.Storage.Mode == objectstore.ModeS3 {
		s3Signer, err := objectstore.NewS3Signer(cfg.Storage, log)
		if err != nil {
			log.Fatal("Failed to init S3 signer", zap.Error(err))
		}
		signer = s3Signer
	}
	uploader := upload.NewUploader(signer, log, upload.WithMaxBytes(cfg.Upload.MaxBytes))

	v := validation.New()
	h := httpserver.Handlers{
		Auth:     handler.NewAuthHandler(auth, v, log),
		Projects: handler.NewProjectHandler(projects, v, log),
		Public:   handler.NewPublicHandler(projects, content, activities, log),
		Activities: map[model.Kind]httpserver.CRUD{
			model.KindTraining:          handler.NewResourceHandler(activities.Trainings, v, log),
			model.KindAwareness:         handler.NewResourceHandler(activities.Awareness, v, log),
			model.KindFLD:               handler.NewResourceHandler(activities.FLDs, v, log),
			model.KindInfrastructure:    handler.NewResourceHandler(activities.Infrastructure, v, log),
			model.KindInputDistribution: handler.NewResourceHandler(activities.InputDistributions, v, log),
		},
		Content: map[string]httpserver.CRUD{
			model.ResourceEvents:       handler.NewResourceHandler(content.Events, v, log),
			model.ResourceGallery:      handler.NewResourceHandler(content.Gallery, v, log),
			model.ResourcePublications: handler.NewResourceHandler(content.Publications, v, log),
		},
		Categories: handler.NewCategoryHandler(categories),
		Dashboard:  handler.NewDashboardHandler(projects, activities, content, categories, log),
		Uploads:    handler.NewUploadHandler(uploader, log),
		Reports:    handler.NewReportHandler(report.NewBuilder(activities, log), reportRepo, v, log),
		Admin: handler.NewAdminHandler(client, registry, sched, func() []store.CollectionState {
			states := projects.States()
			states = append(states, activities.States()...)
			states = append(states, content.States()...)
			return append(states, categories.State())
		}, log),
	}

	router := httpserver.NewRouter(h, auth, log,
		httpserver.ReadinessCheck{Name: "db", Check: dbConn.Ping},
		httpserver.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
		httpserver.ReadinessCheck{Name: "backend", Check: func(context.Context) error {
			if client.BreakerState() == circuitbreaker.StateOpen {
				return errors.New("backend circuit breaker open")
			}
			return nil
		}},
		httpserver.ReadinessCheck{Name: "mq", Check: func(context.Context) error {
			if !publisher.IsConnected() || !consumer.IsConnected() {
				return errors.New("rabbitmq connection closed")
			}
			return nil
		}},
	)

	srv := httpserver.NewServer(":"+cfg.Server.Port, router, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("millets portal is fully initialized and running", zap.String("http_port", cfg.Server.Port))

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down millets portal gracefully...")
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("millets portal shutdown complete")
}

// refreshJobs 定时强制刷新访客可见的集合
func refreshJobs(projects *store.ProjectStore, content *store.ContentStores, categories *store.CategoryStore) []scheduler.Job {
	return []scheduler.Job{
		{Name: "public_projects", Run: func(ctx context.Context) error {
			_, err := projects.List(ctx, backend.Identity{}, true)
			return err
		}},
		{Name: "public_events", Run: func(ctx context.Context) error {
			_, err := content.Events.ListPublic(ctx, true)
			return err
		}},
		{Name: "public_gallery", Run: func(ctx context.Context) error {
			_, err := content.Gallery.ListPublic(ctx, true)
			return err
		}},
		{Name: "public_publications", Run: func(ctx context.Context) error {
			_, err := content.Publications.ListPublic(ctx, true)
			return err
		}},
		{Name: "categories", Run: func(ctx context.Context) error {
			if _, fallback := categories.List(ctx, true); fallback {
				return errors.New("categories unavailable, serving defaults")
			}
			return nil
		}},
	}
}
