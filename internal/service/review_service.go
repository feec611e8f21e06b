package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"toilet-map-service/internal/events"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/repository"
)

// ReviewService handles cleanliness/amenity reviews
type ReviewService struct {
	reviewRepo repository.ReviewRepository
	toiletRepo repository.ToiletRepository
	limiter    *ratelimit.Limiter
	recorder   *ratelimit.Recorder
	publisher  *events.Publisher
	logger     *zap.Logger
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	toiletRepo repository.ToiletRepository,
	limiter *ratelimit.Limiter,
	recorder *ratelimit.Recorder,
	publisher *events.Publisher,
	logger *zap.Logger,
) *ReviewService {
	return &ReviewService{
		reviewRepo: reviewRepo,
		toiletRepo: toiletRepo,
		limiter:    limiter,
		recorder:   recorder,
		publisher:  publisher,
		logger:     logger,
	}
}

// ReviewCreateRequest submits one review. The amenity flags are pointers so
// an omitted flag fails validation instead of defaulting to false.
type ReviewCreateRequest struct {
	ToiletID       string `json:"toilet_id"`
	Cleanliness    int    `json:"cleanliness"`
	HasToiletPaper *bool  `json:"has_toilet_paper"`
	IsUnisex       *bool  `json:"is_unisex"`
	HasBidet       *bool  `json:"has_bidet"`
	HasAccessible  *bool  `json:"has_accessible"`
	HasDiaperTable *bool  `json:"has_diaper_table"`
}

func (r *ReviewCreateRequest) valid() bool {
	if r.ToiletID == "" {
		return false
	}
	if r.Cleanliness < 1 || r.Cleanliness > 3 {
		return false
	}
	return r.HasToiletPaper != nil && r.IsUnisex != nil && r.HasBidet != nil &&
		r.HasAccessible != nil && r.HasDiaperTable != nil
}

// ReviewListResult is the review listing plus its aggregate summary.
type ReviewListResult struct {
	Summary model.ReviewSummary `json:"summary"`
	Reviews []model.Review      `json:"reviews"`
}

func (s *ReviewService) ListByBuilding(ctx context.Context, buildingID, toiletID string) (*ReviewListResult, error) {
	reviews, err := s.reviewRepo.ListByBuilding(ctx, buildingID, toiletID)
	if err != nil {
		return nil, err
	}

	return &ReviewListResult{
		Summary: model.SummarizeReviews(reviews),
		Reviews: reviews,
	}, nil
}

// Create submits a review for a toilet in the building. One review per
// toilet per identity per day; the target denial is terminal and never
// consults the global policy or writes anything.
func (s *ReviewService) Create(ctx context.Context, identityHash, buildingID string, req *ReviewCreateRequest) (*model.Review, error) {
	if !req.valid() {
		return nil, ErrInvalidInput
	}

	targetCheck := s.limiter.Check(ctx, identityHash, ratelimit.ReviewTargetPolicy(req.ToiletID))
	if !targetCheck.Allowed {
		s.publisher.Publish(ctx, events.AbuseEvent{
			EventType:    events.EventTargetLimited,
			IdentityHash: identityHash,
			Action:       string(ratelimit.ActionReview),
			TargetID:     req.ToiletID,
		})
		return nil, ErrTargetLimited
	}

	globalCheck := s.limiter.Check(ctx, identityHash, ratelimit.ReviewGlobalPolicy())
	if !globalCheck.Allowed {
		s.publisher.Publish(ctx, events.AbuseEvent{
			EventType:    events.EventGlobalLimited,
			IdentityHash: identityHash,
			Action:       string(ratelimit.ActionReview),
		})
		return nil, ErrGlobalLimited
	}

	toilet, err := s.toiletRepo.GetInBuilding(ctx, req.ToiletID, buildingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrToiletNotFound
		}
		return nil, err
	}

	review := &model.Review{
		ToiletID:       toilet.ID,
		Cleanliness:    req.Cleanliness,
		HasToiletPaper: *req.HasToiletPaper,
		IsUnisex:       *req.IsUnisex,
		HasBidet:       *req.HasBidet,
		HasAccessible:  *req.HasAccessible,
		HasDiaperTable: *req.HasDiaperTable,
	}

	if err := s.reviewRepo.Insert(ctx, review); err != nil {
		return nil, err
	}
	review.ToiletLocation = toilet.Location

	s.recorder.Record(ctx, identityHash, ratelimit.ActionReview, toilet.ID)

	return review, nil
}
