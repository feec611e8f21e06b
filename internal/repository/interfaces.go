package repository

import (
	"context"
	"errors"

	"toilet-map-service/internal/model"
)

// ErrNotFound is returned when a lookup matches no row. Repositories wrap it
// so services can branch with errors.Is without knowing the driver.
var ErrNotFound = errors.New("not found")

// BuildingRepository defines the interface for building data operations
type BuildingRepository interface {
	ListInBounds(ctx context.Context, swLat, swLng, neLat, neLng float64) ([]model.Building, error)
	GetByID(ctx context.Context, id string) (*model.Building, error)
	GetByAddress(ctx context.Context, address string) (*model.Building, error)
	Insert(ctx context.Context, building *model.Building) error
}

// ToiletRepository defines the interface for toilet data operations
type ToiletRepository interface {
	ListByBuilding(ctx context.Context, buildingID string) ([]model.Toilet, error)
	GetInBuilding(ctx context.Context, toiletID, buildingID string) (*model.Toilet, error)
	Upsert(ctx context.Context, buildingID, location string) (*model.Toilet, error)
}

// PasswordRepository defines the interface for password data operations.
// The Increment methods are deliberately the only way counters change so a
// later revision can swap the read-then-write updates for atomic ones
// without touching call sites.
type PasswordRepository interface {
	ListByBuilding(ctx context.Context, buildingID string) ([]model.Password, error)
	GetByID(ctx context.Context, id string) (*model.Password, error)
	Insert(ctx context.Context, toiletID, password string) (*model.Password, error)
	IncrementConfirm(ctx context.Context, id string) (*model.Password, error)
	IncrementWrong(ctx context.Context, id string) (*model.Password, error)
	IncrementReport(ctx context.Context, id string) (*model.Password, error)
}

// ReviewRepository defines the interface for review data operations
type ReviewRepository interface {
	ListByBuilding(ctx context.Context, buildingID, toiletID string) ([]model.Review, error)
	Insert(ctx context.Context, review *model.Review) error
}

// BuildingCache is the read cache in front of viewport queries.
type BuildingCache interface {
	GetViewport(ctx context.Context, key string) ([]model.Building, bool)
	SetViewport(ctx context.Context, key string, buildings []model.Building)
}
