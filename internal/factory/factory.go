package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"toilet-map-service/internal/client"
	"toilet-map-service/internal/config"
	"toilet-map-service/internal/events"
	"toilet-map-service/internal/hashing"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/repository/postgres"
	redisrepo "toilet-map-service/internal/repository/redis"
	"toilet-map-service/internal/service"
	"toilet-map-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config

	// Clients
	postgresClient *client.PostgresClient
	redisClient    *client.RedisClient
	kafkaProducer  *client.KafkaProducer

	// Managers
	hasher    *hashing.IdentityHasher
	limiter   *ratelimit.Limiter
	recorder  *ratelimit.Recorder
	publisher *events.Publisher

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{config: cfg}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeManagers()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("rate_limit_fail_open", cfg.RateLimit.FailOpen),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)

	return factory, nil
}

func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Postgres is the one hard dependency.
	pgClient, err := client.NewPostgresClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	f.postgresClient = pgClient
	if err := f.postgresClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	if err := f.postgresClient.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	util.Info("Postgres client initialized and healthy")

	// Redis is a read cache; run without it when unavailable.
	if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		util.Warn("Redis initialization failed - proceeding without cache", util.ErrorField(err))
	} else if err := redisClient.HealthCheck(ctx); err != nil {
		util.Warn("Redis health check failed - proceeding without cache", util.ErrorField(err))
		_ = redisClient.Close()
	} else {
		f.redisClient = redisClient
		util.Info("Redis client initialized and healthy")
	}

	// Kafka is opt-in and best-effort.
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	return nil
}

func (f *Factory) initializeManagers() {
	logger := util.Get()

	f.hasher = hashing.NewIdentityHasher(f.config)
	f.publisher = events.NewPublisher(f.kafkaProducer, logger)

	rateLimitRepo := postgres.NewRateLimitRepository(f.postgresClient, logger)
	f.limiter = ratelimit.NewLimiter(rateLimitRepo, f.config.RateLimit.FailOpen, logger)
	f.recorder = ratelimit.NewRecorder(rateLimitRepo, logger)

	buildingRepo := postgres.NewBuildingRepository(f.postgresClient, logger)
	toiletRepo := postgres.NewToiletRepository(f.postgresClient, logger)
	passwordRepo := postgres.NewPasswordRepository(f.postgresClient, logger)
	reviewRepo := postgres.NewReviewRepository(f.postgresClient, logger)

	var cache *redisrepo.BuildingCache
	if f.redisClient != nil {
		cache = redisrepo.NewBuildingCache(f.redisClient, f.config.Redis.CacheTTL)
	}

	f.serviceFactory = buildServiceFactory(buildingRepo, toiletRepo, passwordRepo, reviewRepo,
		cache, f.limiter, f.recorder, f.publisher)
}

// buildServiceFactory exists so the nil redis cache stays a typed nil only
// inside this function; services see a nil interface when Redis is absent.
func buildServiceFactory(
	buildingRepo *postgres.BuildingRepository,
	toiletRepo *postgres.ToiletRepository,
	passwordRepo *postgres.PasswordRepository,
	reviewRepo *postgres.ReviewRepository,
	cache *redisrepo.BuildingCache,
	limiter *ratelimit.Limiter,
	recorder *ratelimit.Recorder,
	publisher *events.Publisher,
) *service.ServiceFactory {
	if cache != nil {
		return service.NewServiceFactory(buildingRepo, toiletRepo, passwordRepo, reviewRepo,
			cache, limiter, recorder, publisher, util.Get())
	}
	return service.NewServiceFactory(buildingRepo, toiletRepo, passwordRepo, reviewRepo,
		nil, limiter, recorder, publisher, util.Get())
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	return f.serviceFactory
}

func (f *Factory) IdentityHasher() *hashing.IdentityHasher {
	return f.hasher
}

// Close shuts down all clients exactly once
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}
		if f.postgresClient != nil {
			f.postgresClient.Close()
		}
		util.Info("All clients closed")
		util.Sync()
	})
}
