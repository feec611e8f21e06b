package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"toilet-map-service/internal/events"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/repository"
)

// ---- rate limit store fake ----

type storeRecord struct {
	identityHash string
	action       ratelimit.Action
	targetID     string
	createdAt    time.Time
}

type fakeRateLimitStore struct {
	mu      sync.Mutex
	records []storeRecord

	// countCalls tracks which policies were actually evaluated, so tests
	// can assert the global check never runs after a target denial.
	countCalls []struct {
		action   ratelimit.Action
		targetID string
	}
}

func (s *fakeRateLimitStore) CountSince(_ context.Context, identityHash string, action ratelimit.Action, targetID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countCalls = append(s.countCalls, struct {
		action   ratelimit.Action
		targetID string
	}{action, targetID})

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

func (s *fakeRateLimitStore) Insert(_ context.Context, identityHash string, action ratelimit.Action, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, storeRecord{identityHash, action, targetID, time.Now()})
	return nil
}

func (s *fakeRateLimitStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
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

func (s *fakeRateLimitStore) seed(identityHash string, action ratelimit.Action, targetID string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, storeRecord{identityHash, action, targetID, createdAt})
}

func (s *fakeRateLimitStore) recordsFor(action ratelimit.Action, targetID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.records {
		if r.action == action && (targetID == "" || r.targetID == targetID) {
			count++
		}
	}
	return count
}

func (s *fakeRateLimitStore) globalCheckCount(action ratelimit.Action) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, c := range s.countCalls {
		if c.action == action && c.targetID == "" {
			count++
		}
	}
	return count
}

// ---- domain repository fakes ----

type fakeBuildingRepo struct {
	mu        sync.Mutex
	buildings map[string]*model.Building // by id
	insertErr error
	inserts   int
}

func newFakeBuildingRepo() *fakeBuildingRepo {
	return &fakeBuildingRepo{buildings: make(map[string]*model.Building)}
}

func (r *fakeBuildingRepo) ListInBounds(_ context.Context, swLat, swLng, neLat, neLng float64) ([]model.Building, error) {
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

func (r *fakeBuildingRepo) GetByID(_ context.Context, id string) (*model.Building, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buildings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, fmt.Errorf("building %s: %w", id, repository.ErrNotFound)
}

func (r *fakeBuildingRepo) GetByAddress(_ context.Context, address string) (*model.Building, error) {
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

func (r *fakeBuildingRepo) Insert(_ context.Context, building *model.Building) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return r.insertErr
	}
	if building.ID == "" {
		building.ID = uuid.New().String()
	}
	building.CreatedAt = time.Now()
	copied := *building
	r.buildings[building.ID] = &copied
	return nil
}

type fakeToiletRepo struct {
	mu      sync.Mutex
	toilets map[string]*model.Toilet // by id
	upserts int
}

func newFakeToiletRepo() *fakeToiletRepo {
	return &fakeToiletRepo{toilets: make(map[string]*model.Toilet)}
}

func (r *fakeToiletRepo) ListByBuilding(_ context.Context, buildingID string) ([]model.Toilet, error) {
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

func (r *fakeToiletRepo) GetInBuilding(_ context.Context, toiletID, buildingID string) (*model.Toilet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.toilets[toiletID]; ok && t.BuildingID == buildingID {
		copied := *t
		return &copied, nil
	}
	return nil, fmt.Errorf("toilet %s in building %s: %w", toiletID, buildingID, repository.ErrNotFound)
}

func (r *fakeToiletRepo) Upsert(_ context.Context, buildingID, location string) (*model.Toilet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
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

type fakePasswordRepo struct {
	mu        sync.Mutex
	passwords map[string]*model.Password // by id
	insertErr error
	inserts   int
}

func newFakePasswordRepo() *fakePasswordRepo {
	return &fakePasswordRepo{passwords: make(map[string]*model.Password)}
}

func (r *fakePasswordRepo) ListByBuilding(_ context.Context, buildingID string) ([]model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Password, 0)
	for _, p := range r.passwords {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePasswordRepo) GetByID(_ context.Context, id string) (*model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.passwords[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, fmt.Errorf("password %s: %w", id, repository.ErrNotFound)
}

func (r *fakePasswordRepo) Insert(_ context.Context, toiletID, passwordText string) (*model.Password, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return nil, r.insertErr
	}
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

func (r *fakePasswordRepo) IncrementConfirm(_ context.Context, id string) (*model.Password, error) {
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

func (r *fakePasswordRepo) IncrementWrong(_ context.Context, id string) (*model.Password, error) {
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

func (r *fakePasswordRepo) IncrementReport(_ context.Context, id string) (*model.Password, error) {
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

func (r *fakePasswordRepo) seed(p *model.Password) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwords[p.ID] = p
}

type fakeReviewRepo struct {
	mu      sync.Mutex
	reviews []model.Review
	toilets *fakeToiletRepo
	inserts int
}

func newFakeReviewRepo(toilets *fakeToiletRepo) *fakeReviewRepo {
	return &fakeReviewRepo{toilets: toilets}
}

func (r *fakeReviewRepo) ListByBuilding(_ context.Context, buildingID, toiletID string) ([]model.Review, error) {
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

func (r *fakeReviewRepo) Insert(_ context.Context, review *model.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	review.CreatedAt = time.Now()
	r.reviews = append(r.reviews, *review)
	return nil
}

// ---- wiring helper ----

type testEnv struct {
	store        *fakeRateLimitStore
	buildingRepo *fakeBuildingRepo
	toiletRepo   *fakeToiletRepo
	passwordRepo *fakePasswordRepo
	reviewRepo   *fakeReviewRepo

	buildings *BuildingService
	toilets   *ToiletService
	passwords *PasswordService
	reviews   *ReviewService
}

func newTestEnv() *testEnv {
	logger := zap.NewNop()
	store := &fakeRateLimitStore{}
	limiter := ratelimit.NewLimiter(store, true, logger)
	recorder := ratelimit.NewRecorder(store, logger)
	publisher := events.NewPublisher(nil, logger)

	buildingRepo := newFakeBuildingRepo()
	toiletRepo := newFakeToiletRepo()
	passwordRepo := newFakePasswordRepo()
	reviewRepo := newFakeReviewRepo(toiletRepo)

	return &testEnv{
		store:        store,
		buildingRepo: buildingRepo,
		toiletRepo:   toiletRepo,
		passwordRepo: passwordRepo,
		reviewRepo:   reviewRepo,
		buildings: NewBuildingService(buildingRepo, toiletRepo, passwordRepo, reviewRepo,
			nil, limiter, recorder, publisher, logger),
		toilets:   NewToiletService(toiletRepo, limiter, recorder, publisher, logger),
		passwords: NewPasswordService(passwordRepo, toiletRepo, limiter, recorder, publisher, logger),
		reviews:   NewReviewService(reviewRepo, toiletRepo, limiter, recorder, publisher, logger),
	}
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
