package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"toilet-map-service/internal/client"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/util"
)

type ReviewRepository struct {
	client *client.PostgresClient
}

func NewReviewRepository(client *client.PostgresClient, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{client: client}
}

// ListByBuilding returns the building's reviews newest first, optionally
// narrowed to one toilet, each carrying the toilet's location.
func (r *ReviewRepository) ListByBuilding(ctx context.Context, buildingID, toiletID string) ([]model.Review, error) {
	query := `
		SELECT r.id, r.toilet_id, r.cleanliness, r.has_toilet_paper, r.is_unisex,
		       r.has_bidet, r.has_accessible, r.has_diaper_table, r.created_at, t.location
		FROM reviews r
		JOIN toilets t ON t.id = r.toilet_id
		WHERE t.building_id = $1`
	args := []interface{}{buildingID}

	if toiletID != "" {
		query += ` AND r.toilet_id = $2`
		args = append(args, toiletID)
	}
	query += ` ORDER BY r.created_at DESC`

	rows, err := r.client.Pool.Query(ctx, query, args...)
	if err != nil {
		util.Error("Failed to list reviews",
			zap.String("building_id", buildingID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]model.Review, 0)
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ToiletID, &rv.Cleanliness, &rv.HasToiletPaper,
			&rv.IsUnisex, &rv.HasBidet, &rv.HasAccessible, &rv.HasDiaperTable,
			&rv.CreatedAt, &rv.ToiletLocation); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review rows: %w", err)
	}

	return reviews, nil
}

func (r *ReviewRepository) Insert(ctx context.Context, review *model.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	review.CreatedAt = time.Now().UTC()

	_, err := r.client.Pool.Exec(ctx, `
		INSERT INTO reviews (id, toilet_id, cleanliness, has_toilet_paper, is_unisex,
		                     has_bidet, has_accessible, has_diaper_table, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		review.ID, review.ToiletID, review.Cleanliness, review.HasToiletPaper,
		review.IsUnisex, review.HasBidet, review.HasAccessible, review.HasDiaperTable,
		review.CreatedAt)
	if err != nil {
		util.Error("Failed to insert review",
			zap.String("toilet_id", review.ToiletID),
			zap.Error(err))
		return fmt.Errorf("failed to insert review: %w", err)
	}

	util.Info("Review created",
		zap.String("review_id", review.ID),
		zap.String("toilet_id", review.ToiletID))

	return nil
}
