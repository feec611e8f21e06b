package service

import (
	"go.uber.org/zap"

	"toilet-map-service/internal/events"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/repository"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	buildingRepo repository.BuildingRepository
	toiletRepo   repository.ToiletRepository
	passwordRepo repository.PasswordRepository
	reviewRepo   repository.ReviewRepository
	cache        repository.BuildingCache
	limiter      *ratelimit.Limiter
	recorder     *ratelimit.Recorder
	publisher    *events.Publisher
	logger       *zap.Logger

	buildingService *BuildingService
	toiletService   *ToiletService
	passwordService *PasswordService
	reviewService   *ReviewService
}

func NewServiceFactory(
	buildingRepo repository.BuildingRepository,
	toiletRepo repository.ToiletRepository,
	passwordRepo repository.PasswordRepository,
	reviewRepo repository.ReviewRepository,
	cache repository.BuildingCache,
	limiter *ratelimit.Limiter,
	recorder *ratelimit.Recorder,
	publisher *events.Publisher,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		buildingRepo: buildingRepo,
		toiletRepo:   toiletRepo,
		passwordRepo: passwordRepo,
		reviewRepo:   reviewRepo,
		cache:        cache,
		limiter:      limiter,
		recorder:     recorder,
		publisher:    publisher,
		logger:       logger,
	}
}

func (f *ServiceFactory) BuildingService() *BuildingService {
	if f.buildingService == nil {
		f.buildingService = NewBuildingService(f.buildingRepo, f.toiletRepo, f.passwordRepo,
			f.reviewRepo, f.cache, f.limiter, f.recorder, f.publisher, f.logger)
	}
	return f.buildingService
}

func (f *ServiceFactory) ToiletService() *ToiletService {
	if f.toiletService == nil {
		f.toiletService = NewToiletService(f.toiletRepo, f.limiter, f.recorder, f.publisher, f.logger)
	}
	return f.toiletService
}

func (f *ServiceFactory) PasswordService() *PasswordService {
	if f.passwordService == nil {
		f.passwordService = NewPasswordService(f.passwordRepo, f.toiletRepo, f.limiter,
			f.recorder, f.publisher, f.logger)
	}
	return f.passwordService
}

func (f *ServiceFactory) ReviewService() *ReviewService {
	if f.reviewService == nil {
		f.reviewService = NewReviewService(f.reviewRepo, f.toiletRepo, f.limiter,
			f.recorder, f.publisher, f.logger)
	}
	return f.reviewService
}
