package model

import "time"

// ReportThreshold is the number of reports at which a password is deactivated.
const ReportThreshold = 3

// -------------------- BUILDING MODEL --------------------
type Building struct {
	ID          string    `json:"id" db:"id"`                     // UUID
	Name        *string   `json:"name" db:"name"`                 // optional display name
	Address     string    `json:"address" db:"address"`           // dedupe key
	RoadAddress *string   `json:"road_address" db:"road_address"` // road-name address, when the geocoder provides one
	Lat         float64   `json:"lat" db:"lat"`
	Lng         float64   `json:"lng" db:"lng"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// -------------------- TOILET MODEL --------------------
type Toilet struct {
	ID         string    `json:"id" db:"id"` // UUID
	BuildingID string    `json:"building_id" db:"building_id"`
	Location   string    `json:"location" db:"location"` // e.g. "2F next to elevator"; unique per building
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// -------------------- PASSWORD MODEL --------------------
type Password struct {
	ID              string     `json:"id" db:"id"` // UUID
	ToiletID        string     `json:"toilet_id" db:"toilet_id"`
	Password        string     `json:"password" db:"password"` // the door code itself
	ConfirmCount    int        `json:"confirm_count" db:"confirm_count"`
	WrongCount      int        `json:"wrong_count" db:"wrong_count"`
	ReportCount     int        `json:"report_count" db:"report_count"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	LastConfirmedAt *time.Time `json:"last_confirmed_at" db:"last_confirmed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`

	// Location is the owning toilet's location, flattened in by list queries.
	Location string `json:"location,omitempty" db:"-"`
}

// -------------------- REVIEW MODEL --------------------
type Review struct {
	ID             string    `json:"id" db:"id"` // UUID
	ToiletID       string    `json:"toilet_id" db:"toilet_id"`
	Cleanliness    int       `json:"cleanliness" db:"cleanliness"` // 1=clean 2=average 3=dirty
	HasToiletPaper bool      `json:"has_toilet_paper" db:"has_toilet_paper"`
	IsUnisex       bool      `json:"is_unisex" db:"is_unisex"`
	HasBidet       bool      `json:"has_bidet" db:"has_bidet"`
	HasAccessible  bool      `json:"has_accessible" db:"has_accessible"`
	HasDiaperTable bool      `json:"has_diaper_table" db:"has_diaper_table"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	ToiletLocation string `json:"toilet_location,omitempty" db:"-"`
}

// CleanlinessBreakdown buckets review counts by cleanliness rating.
type CleanlinessBreakdown struct {
	Clean   int `json:"clean"`
	Average int `json:"average"`
	Dirty   int `json:"dirty"`
}

// ReviewSummary aggregates a set of reviews for display.
type ReviewSummary struct {
	TotalCount     int                  `json:"total_count"`
	Cleanliness    CleanlinessBreakdown `json:"cleanliness"`
	HasToiletPaper int                  `json:"has_toilet_paper"`
	IsUnisex       int                  `json:"is_unisex"`
	HasBidet       int                  `json:"has_bidet"`
	HasAccessible  int                  `json:"has_accessible"`
	HasDiaperTable int                  `json:"has_diaper_table"`
}

// SummarizeReviews computes the aggregate view the review listing returns.
func SummarizeReviews(reviews []Review) ReviewSummary {
	summary := ReviewSummary{TotalCount: len(reviews)}
	for _, r := range reviews {
		switch r.Cleanliness {
		case 1:
			summary.Cleanliness.Clean++
		case 2:
			summary.Cleanliness.Average++
		case 3:
			summary.Cleanliness.Dirty++
		}
		if r.HasToiletPaper {
			summary.HasToiletPaper++
		}
		if r.IsUnisex {
			summary.IsUnisex++
		}
		if r.HasBidet {
			summary.HasBidet++
		}
		if r.HasAccessible {
			summary.HasAccessible++
		}
		if r.HasDiaperTable {
			summary.HasDiaperTable++
		}
	}
	return summary
}

// -------------------- RATE LIMIT MODEL --------------------

// RateLimitRecord is one logged action attempt. Rows are append-only; bulk
// deletion by age is the only removal path.
type RateLimitRecord struct {
	ID           int64     `json:"id" db:"id"`
	IdentityHash string    `json:"identity_hash" db:"ip_hash"`
	Action       string    `json:"action" db:"action"`
	TargetID     *string   `json:"target_id" db:"target_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// -------------------- AGGREGATES --------------------

// BuildingDetail bundles everything the building panel needs in one response.
type BuildingDetail struct {
	Building  *Building     `json:"building"`
	Toilets   []Toilet      `json:"toilets"`
	Passwords []Password    `json:"passwords"`
	Reviews   ReviewSummary `json:"review_summary"`
}
