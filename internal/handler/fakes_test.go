package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"toilet-map-service/internal/config"
	"toilet-map-service/internal/events"
	"toilet-map-service/internal/hashing"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/repository"
	"toilet-map-service/internal/service"
)

type memRateLimitStore struct {
	mu      sync.Mutex
	records []struct {
		identityHash string
		action       ratelimit.Action
		targetID     string
		createdAt    time.Time
	}
}

func (s *memRateLimitStore) CountSince(_ context.Context, identityHash string, action ratelimit.Action, targetID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.records {
		if r.identityHash != identityHash || r.action != action {
			continue
		}
		if targetID != "" && r.targetID != targetID {
			continue
		}
		if r.createdAt.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *memRateLimitStore) Insert(_ context.Context, identityHash string, action ratelimit.Action, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, struct {
		identityHash string
		action       ratelimit.Action
		targetID     string
		createdAt    time.Time
	}{identityHash, action, targetID, time.Now()})
	return nil
}

func (s *memRateLimitStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.createdAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}

type memBuildingRepo struct {
	mu        sync.Mutex
	buildings map[string]*model.Building
}

func (r *memBuildingRepo) ListInBounds(_ context.Context, swLat, swLng, neLat, neLng float64) ([]model.Building, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Building, 0)
	for _, b := range r.buildings {
		if b.Lat >= swLat && b.Lat <= neLat && b.Lng >= swLng && b.Lng <= neLng {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBuildingRepo) GetByID(_ context.Context, id string) (*model.Building, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buildings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, fmt.Errorf("building %s: %w", id, repository.ErrNotFound)
}

func (r *memBuildingRepo) GetByAddress(_ context.Context, address string) (*model.Building, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buildings {
		if b.Address == address {
			copied := *b
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("building at %q: %w", address, repository.ErrNotFound)
}

func (r *memBuildingRepo) Insert(_ context.Context, building *model.Building) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if building.ID == "" {
		building.ID = uuid.New().String()
	}
	building.CreatedAt = time.Now()
	copied := *building
	r.buildings[building.ID] = &copied
	return nil
}

type memToiletRepo struct {
	mu      sync.Mutex
	toilets map[string]*model.Toilet
}

func (r *memToiletRepo) ListByBuilding(_ context.Context, buildingID string) ([]model.Toilet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Toilet, 0)
	for _, t := range r.toilets {
		if t.BuildingID == buildingID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memToiletRepo) GetInBuilding(_ context.Context, toiletID, buildingID string) (*model.Toilet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.toilets[toiletID]; ok && t.BuildingID == buildingID {
		copied := *t
		return &copied, nil
	}
	return nil, fmt.Errorf("toilet %s in building %s: %w", toiletID, buildingID, repository.ErrNotFound)
}

func (r *memToiletRepo) Upsert(_ context.Context, buildingID, location string) (*model.Toilet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.toilets {
		if t.BuildingID == buildingID && t.Location == location {
			copied := *t
			return &copied, nil
		}
	}
	toilet := &model.Toilet{
		ID:         uuid.New().String(),
		BuildingID: buildingID,
		Location:   location,
		CreatedAt:  time.Now(),
	}
	r.toilets[toilet.ID] = toilet
	copied := *toilet
	return &copied, nil
}

type memPasswordRepo struct {
	mu        sync.Mutex
	passwords map[string]*model.Password
}

func (r *memPasswordRepo) ListByBuilding(_ context.Context, buildingID string) ([]model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Password, 0)
	for _, p := range r.passwords {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memPasswordRepo) GetByID(_ context.Context, id string) (*model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.passwords[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, fmt.Errorf("password %s: %w", id, repository.ErrNotFound)
}

func (r *memPasswordRepo) Insert(_ context.Context, toiletID, passwordText string) (*model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	password := &model.Password{
		ID:        uuid.New().String(),
		ToiletID:  toiletID,
		Password:  passwordText,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.passwords[password.ID] = password
	copied := *password
	return &copied, nil
}

func (r *memPasswordRepo) IncrementConfirm(_ context.Context, id string) (*model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.passwords[id]
	if !ok {
		return nil, fmt.Errorf("password %s: %w", id, repository.ErrNotFound)
	}
	now := time.Now()
	p.ConfirmCount++
	p.LastConfirmedAt = &now
	p.UpdatedAt = now
	copied := *p
	return &copied, nil
}

func (r *memPasswordRepo) IncrementWrong(_ context.Context, id string) (*model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.passwords[id]
	if !ok {
		return nil, fmt.Errorf("password %s: %w", id, repository.ErrNotFound)
	}
	p.WrongCount++
	p.UpdatedAt = time.Now()
	copied := *p
	return &copied, nil
}

func (r *memPasswordRepo) IncrementReport(_ context.Context, id string) (*model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.passwords[id]
	if !ok {
		return nil, fmt.Errorf("password %s: %w", id, repository.ErrNotFound)
	}
	p.ReportCount++
	p.IsActive = p.ReportCount < model.ReportThreshold
	p.UpdatedAt = time.Now()
	copied := *p
	return &copied, nil
}

type memReviewRepo struct {
	mu      sync.Mutex
	reviews []model.Review
	toilets *memToiletRepo
}

func (r *memReviewRepo) ListByBuilding(_ context.Context, buildingID, toiletID string) ([]model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Review, 0)
	for _, rv := range r.reviews {
		t, ok := r.toilets.toilets[rv.ToiletID]
		if !ok || t.BuildingID != buildingID {
			continue
		}
		if toiletID != "" && rv.ToiletID != toiletID {
			continue
		}
		out = append(out, rv)
	}
	return out, nil
}

func (r *memReviewRepo) Insert(_ context.Context, review *model.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	review.CreatedAt = time.Now()
	r.reviews = append(r.reviews, *review)
	return nil
}

// testFixtures exposes the backing stores so tests can seed data directly.
type testFixtures struct {
	store        *memRateLimitStore
	buildingRepo *memBuildingRepo
	toiletRepo   *memToiletRepo
	passwordRepo *memPasswordRepo
	reviewRepo   *memReviewRepo
}

func newTestRouter() (chi.Router, *testFixtures) {
	logger := zap.NewNop()

	fixtures := &testFixtures{
		store:        &memRateLimitStore{},
		buildingRepo: &memBuildingRepo{buildings: make(map[string]*model.Building)},
		toiletRepo:   &memToiletRepo{toilets: make(map[string]*model.Toilet)},
		passwordRepo: &memPasswordRepo{passwords: make(map[string]*model.Password)},
	}
	fixtures.reviewRepo = &memReviewRepo{toilets: fixtures.toiletRepo}

	limiter := ratelimit.NewLimiter(fixtures.store, true, logger)
	recorder := ratelimit.NewRecorder(fixtures.store, logger)
	publisher := events.NewPublisher(nil, logger)
	hasher := hashing.NewIdentityHasher(&config.Config{})

	buildingService := service.NewBuildingService(fixtures.buildingRepo, fixtures.toiletRepo,
		fixtures.passwordRepo, fixtures.reviewRepo, nil, limiter, recorder, publisher, logger)
	toiletService := service.NewToiletService(fixtures.toiletRepo, limiter, recorder, publisher, logger)
	passwordService := service.NewPasswordService(fixtures.passwordRepo, fixtures.toiletRepo,
		limiter, recorder, publisher, logger)
	reviewService := service.NewReviewService(fixtures.reviewRepo, fixtures.toiletRepo,
		limiter, recorder, publisher, logger)

	buildingHandler := NewBuildingHandler(buildingService, toiletService, passwordService,
		reviewService, hasher, logger)
	passwordHandler := NewPasswordHandler(passwordService, hasher, logger)

	return NewRouter(buildingHandler, passwordHandler, logger), fixtures
}

func (f *testFixtures) seedBuilding(address string) *model.Building {
	building := &model.Building{Address: address, Lat: 37.5, Lng: 127.0}
	_ = f.buildingRepo.Insert(context.Background(), building)
	return building
}

func (f *testFixtures) seedToilet(buildingID, location string) *model.Toilet {
	toilet, _ := f.toiletRepo.Upsert(context.Background(), buildingID, location)
	return toilet
}

func (f *testFixtures) seedPassword(toiletID, code string) *model.Password {
	password, _ := f.passwordRepo.Insert(context.Background(), toiletID, code)
	return password
}
