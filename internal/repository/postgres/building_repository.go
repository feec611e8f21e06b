package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"toilet-map-service/internal/client"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/repository"
	"toilet-map-service/internal/util"
)

type BuildingRepository struct {
	client *client.PostgresClient
}

func NewBuildingRepository(client *client.PostgresClient, logger *zap.Logger) *BuildingRepository {
	return &BuildingRepository{client: client}
}

// ListInBounds returns buildings inside the viewport that have at least one
// registered password; buildings without codes are invisible on the map.
func (r *BuildingRepository) ListInBounds(ctx context.Context, swLat, swLng, neLat, neLng float64) ([]model.Building, error) {
	rows, err := r.client.Pool.Query(ctx, `
		SELECT b.id, b.name, b.address, b.road_address, b.lat, b.lng, b.created_at
		FROM buildings b
		WHERE b.lat >= $1 AND b.lat <= $2
		  AND b.lng >= $3 AND b.lng <= $4
		  AND EXISTS (
			SELECT 1 FROM toilets t
			JOIN passwords p ON p.toilet_id = t.id
			WHERE t.building_id = b.id
		  )`,
		swLat, neLat, swLng, neLng)
	if err != nil {
		util.Error("Failed to list buildings in bounds", zap.Error(err))
		return nil, fmt.Errorf("failed to list buildings in bounds: %w", err)
	}
	defer rows.Close()

	buildings := make([]model.Building, 0)
	for rows.Next() {
		var b model.Building
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.RoadAddress, &b.Lat, &b.Lng, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan building row: %w", err)
		}
		buildings = append(buildings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate building rows: %w", err)
	}

	return buildings, nil
}

func (r *BuildingRepository) GetByID(ctx context.Context, id string) (*model.Building, error) {
	building := &model.Building{}

	err := r.client.Pool.QueryRow(ctx, `
		SELECT id, name, address, road_address, lat, lng, created_at
		FROM buildings WHERE id = $1`, id).
		Scan(&building.ID, &building.Name, &building.Address, &building.RoadAddress,
			&building.Lat, &building.Lng, &building.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("building %s: %w", id, repository.ErrNotFound)
		}
		util.Error("Failed to get building by ID",
			zap.String("building_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get building by ID: %w", err)
	}

	return building, nil
}

func (r *BuildingRepository) GetByAddress(ctx context.Context, address string) (*model.Building, error) {
	building := &model.Building{}

	err := r.client.Pool.QueryRow(ctx, `
		SELECT id, name, address, road_address, lat, lng, created_at
		FROM buildings WHERE address = $1`, address).
		Scan(&building.ID, &building.Name, &building.Address, &building.RoadAddress,
			&building.Lat, &building.Lng, &building.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("building at %q: %w", address, repository.ErrNotFound)
		}
		util.Error("Failed to get building by address", zap.Error(err))
		return nil, fmt.Errorf("failed to get building by address: %w", err)
	}

	return building, nil
}

func (r *BuildingRepository) Insert(ctx context.Context, building *model.Building) error {
	if building.ID == "" {
		building.ID = uuid.New().String()
	}
	building.CreatedAt = time.Now().UTC()

	_, err := r.client.Pool.Exec(ctx, `
		INSERT INTO buildings (id, name, address, road_address, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		building.ID, building.Name, building.Address, building.RoadAddress,
		building.Lat, building.Lng, building.CreatedAt)
	if err != nil {
		util.Error("Failed to insert building",
			zap.String("building_id", building.ID),
			zap.Error(err))
		return fmt.Errorf("failed to insert building: %w", err)
	}

	util.Info("Building created",
		zap.String("building_id", building.ID),
		zap.Float64("lat", building.Lat),
		zap.Float64("lng", building.Lng))

	return nil
}
