package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"toilet-map-service/internal/events"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/repository"
	redisrepo "toilet-map-service/internal/repository/redis"
	"toilet-map-service/internal/util"
)

// BuildingService handles building lookup and registration
type BuildingService struct {
	buildingRepo repository.BuildingRepository
	toiletRepo   repository.ToiletRepository
	passwordRepo repository.PasswordRepository
	reviewRepo   repository.ReviewRepository
	cache        repository.BuildingCache
	limiter      *ratelimit.Limiter
	recorder     *ratelimit.Recorder
	publisher    *events.Publisher
	logger       *zap.Logger
}

func NewBuildingService(
	buildingRepo repository.BuildingRepository,
	toiletRepo repository.ToiletRepository,
	passwordRepo repository.PasswordRepository,
	reviewRepo repository.ReviewRepository,
	cache repository.BuildingCache,
	limiter *ratelimit.Limiter,
	recorder *ratelimit.Recorder,
	publisher *events.Publisher,
	logger *zap.Logger,
) *BuildingService {
	return &BuildingService{
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

// BuildingUpsertRequest represents a building registration request. Lat/Lng
// are pointers so a missing coordinate is distinguishable from zero.
type BuildingUpsertRequest struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	RoadAddress string   `json:"road_address"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
}

// ListInViewport returns buildings with registered codes inside the bounds,
// served from the viewport cache when a fresh entry exists.
func (s *BuildingService) ListInViewport(ctx context.Context, swLat, swLng, neLat, neLng float64) ([]model.Building, error) {
	key := redisrepo.ViewportKey(swLat, swLng, neLat, neLng)

	if s.cache != nil {
		if cached, ok := s.cache.GetViewport(ctx, key); ok {
			return cached, nil
		}
	}

	buildings, err := s.buildingRepo.ListInBounds(ctx, swLat, swLng, neLat, neLng)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetViewport(ctx, key, buildings)
	}

	return buildings, nil
}

// Upsert registers a building keyed by address. The address lookup runs
// before any rate limiting: returning an already-known building is free and
// is never throttled or recorded. Only a genuinely new row passes through
// the global check and gets recorded. The bool result reports whether a new
// row was created.
func (s *BuildingService) Upsert(ctx context.Context, identityHash string, req *BuildingUpsertRequest) (*model.Building, bool, error) {
	address := util.SanitizeInput(req.Address)
	if address == "" || req.Lat == nil || req.Lng == nil {
		return nil, false, ErrInvalidInput
	}

	existing, err := s.buildingRepo.GetByAddress(ctx, address)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	check := s.limiter.Check(ctx, identityHash, ratelimit.BuildingCreatePolicy())
	if !check.Allowed {
		s.publisher.Publish(ctx, events.AbuseEvent{
			EventType:    events.EventGlobalLimited,
			IdentityHash: identityHash,
			Action:       string(ratelimit.ActionBuilding),
		})
		return nil, false, ErrGlobalLimited
	}

	building := &model.Building{
		Address: address,
		Lat:     *req.Lat,
		Lng:     *req.Lng,
	}
	if name := util.SanitizeInput(req.Name); name != "" {
		building.Name = &name
	}
	if road := util.SanitizeInput(req.RoadAddress); road != "" {
		building.RoadAddress = &road
	}

	if err := s.buildingRepo.Insert(ctx, building); err != nil {
		return nil, false, err
	}

	s.recorder.Record(ctx, identityHash, ratelimit.ActionBuilding, "")

	return building, true, nil
}

// Detail aggregates the building with its toilets, passwords, and review
// summary, fetched concurrently.
func (s *BuildingService) Detail(ctx context.Context, buildingID string) (*model.BuildingDetail, error) {
	building, err := s.buildingRepo.GetByID(ctx, buildingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBuildingNotFound
		}
		return nil, err
	}

	detail := &model.BuildingDetail{Building: building}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		toilets, err := s.toiletRepo.ListByBuilding(gctx, buildingID)
		if err != nil {
			return err
		}
		detail.Toilets = toilets
		return nil
	})
	g.Go(func() error {
		passwords, err := s.passwordRepo.ListByBuilding(gctx, buildingID)
		if err != nil {
			return err
		}
		detail.Passwords = passwords
		return nil
	})
	g.Go(func() error {
		reviews, err := s.reviewRepo.ListByBuilding(gctx, buildingID, "")
		if err != nil {
			return err
		}
		detail.Reviews = model.SummarizeReviews(reviews)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return detail, nil
}
