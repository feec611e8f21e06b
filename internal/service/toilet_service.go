package service

import (
	"context"

	"go.uber.org/zap"

	"toilet-map-service/internal/events"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/repository"
	"toilet-map-service/internal/util"
)

// ToiletService handles toilet listing and registration
type ToiletService struct {
	toiletRepo repository.ToiletRepository
	limiter    *ratelimit.Limiter
	recorder   *ratelimit.Recorder
	publisher  *events.Publisher
	logger     *zap.Logger
}

func NewToiletService(
	toiletRepo repository.ToiletRepository,
	limiter *ratelimit.Limiter,
	recorder *ratelimit.Recorder,
	publisher *events.Publisher,
	logger *zap.Logger,
) *ToiletService {
	return &ToiletService{
		toiletRepo: toiletRepo,
		limiter:    limiter,
		recorder:   recorder,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *ToiletService) ListByBuilding(ctx context.Context, buildingID string) ([]model.Toilet, error) {
	return s.toiletRepo.ListByBuilding(ctx, buildingID)
}

// Register upserts a toilet at (building, location). Every successful
// upsert records, whether it inserted or returned the existing row.
func (s *ToiletService) Register(ctx context.Context, identityHash, buildingID, location string) (*model.Toilet, error) {
	location = util.SanitizeInput(location)
	if location == "" {
		return nil, ErrInvalidInput
	}

	check := s.limiter.Check(ctx, identityHash, ratelimit.ToiletCreatePolicy())
	if !check.Allowed {
		s.publisher.Publish(ctx, events.AbuseEvent{
			EventType:    events.EventGlobalLimited,
			IdentityHash: identityHash,
			Action:       string(ratelimit.ActionToilet),
		})
		return nil, ErrGlobalLimited
	}

	toilet, err := s.toiletRepo.Upsert(ctx, buildingID, location)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, identityHash, ratelimit.ActionToilet, "")

	return toilet, nil
}
