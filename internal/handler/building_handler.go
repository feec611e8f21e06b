package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"toilet-map-service/internal/hashing"
	"toilet-map-service/internal/service"
	"toilet-map-service/internal/util"
)

// BuildingHandler handles HTTP requests for buildings and their nested
// toilets, passwords, and reviews.
type BuildingHandler struct {
	buildingService *service.BuildingService
	toiletService   *service.ToiletService
	passwordService *service.PasswordService
	reviewService   *service.ReviewService
	hasher          *hashing.IdentityHasher
	logger          *zap.Logger
}

func NewBuildingHandler(
	buildingService *service.BuildingService,
	toiletService *service.ToiletService,
	passwordService *service.PasswordService,
	reviewService *service.ReviewService,
	hasher *hashing.IdentityHasher,
	logger *zap.Logger,
) *BuildingHandler {
	return &BuildingHandler{
		buildingService: buildingService,
		toiletService:   toiletService,
		passwordService: passwordService,
		reviewService:   reviewService,
		hasher:          hasher,
		logger:          logger,
	}
}

// RegisterRoutes registers all building routes
func (h *BuildingHandler) RegisterRoutes(router chi.Router) {
	router.Route("/buildings", func(r chi.Router) {
		r.Get("/", h.ListBuildings)
		r.Post("/", h.UpsertBuilding)

		r.Route("/{buildingID}", func(r chi.Router) {
			r.Get("/", h.GetBuildingDetail)
			r.Get("/toilets", h.ListToilets)
			r.Post("/toilets", h.RegisterToilet)
			r.Get("/passwords", h.ListPasswords)
			r.Post("/passwords", h.CreatePassword)
			r.Get("/reviews", h.ListReviews)
			r.Post("/reviews", h.CreateReview)
		})
	})
}

// ListBuildings returns buildings with registered codes inside the viewport
func (h *BuildingHandler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bounds := [4]float64{}
	for i, name := range []string{"swLat", "swLng", "neLat", "neLng"} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			respondWithError(w, h.logger, http.StatusBadRequest,
				errors.New("missing bounds parameter: "+name), "Missing bounds parameters")
			return
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid bounds parameter: "+name)
			return
		}
		bounds[i] = value
	}

	buildings, err := h.buildingService.ListInViewport(ctx, bounds[0], bounds[1], bounds[2], bounds[3])
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to list buildings")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(buildings, "Buildings retrieved"))
}

// UpsertBuilding registers a building, or returns the existing one matching
// the address. 201 only when a new row was created.
func (h *BuildingHandler) UpsertBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req service.BuildingUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	identityHash := h.hasher.Hash(clientIP(r))

	building, created, err := h.buildingService.Upsert(ctx, identityHash, &req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to register building")
		return
	}

	status := http.StatusOK
	message := "Existing building returned"
	if created {
		status = http.StatusCreated
		message = "Building created"
	}

	respondWithJSON(w, h.logger, status, successResponse(building, message))
	h.logger.Info("Building upserted via HTTP",
		util.String("building_id", building.ID),
		util.Bool("created", created),
		util.Duration("duration", time.Since(startTime)),
	)
}

// GetBuildingDetail returns the building with its toilets, passwords, and
// review summary.
func (h *BuildingHandler) GetBuildingDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildingID, ok := h.buildingIDParam(w, r)
	if !ok {
		return
	}

	detail, err := h.buildingService.Detail(ctx, buildingID)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to get building")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(detail, "Building retrieved"))
}

func (h *BuildingHandler) ListToilets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildingID, ok := h.buildingIDParam(w, r)
	if !ok {
		return
	}

	toilets, err := h.toiletService.ListByBuilding(ctx, buildingID)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to list toilets")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(toilets, "Toilets retrieved"))
}

// RegisterToilet registers a toilet location within a building
func (h *BuildingHandler) RegisterToilet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildingID, ok := h.buildingIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	identityHash := h.hasher.Hash(clientIP(r))

	toilet, err := h.toiletService.Register(ctx, identityHash, buildingID, req.Location)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to register toilet")
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, successResponse(toilet, "Toilet registered"))
}

func (h *BuildingHandler) ListPasswords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildingID, ok := h.buildingIDParam(w, r)
	if !ok {
		return
	}

	passwords, err := h.passwordService.ListByBuilding(ctx, buildingID)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to list passwords")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(passwords, "Passwords retrieved"))
}

// CreatePassword registers a door code, creating the toilet when needed
func (h *BuildingHandler) CreatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	buildingID, ok := h.buildingIDParam(w, r)
	if !ok {
		return
	}

	var req service.PasswordCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	identityHash := h.hasher.Hash(clientIP(r))

	password, err := h.passwordService.Create(ctx, identityHash, buildingID, &req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to create password")
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, successResponse(password, "Password created"))
	h.logger.Info("Password created via HTTP",
		util.String("password_id", password.ID),
		util.Duration("duration", time.Since(startTime)),
	)
}

func (h *BuildingHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildingID, ok := h.buildingIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.reviewService.ListByBuilding(ctx, buildingID, r.URL.Query().Get("toilet_id"))
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to list reviews")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(result, "Reviews retrieved"))
}

// CreateReview submits a cleanliness/amenity review for a toilet
func (h *BuildingHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildingID, ok := h.buildingIDParam(w, r)
	if !ok {
		return
	}

	var req service.ReviewCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	identityHash := h.hasher.Hash(clientIP(r))

	review, err := h.reviewService.Create(ctx, identityHash, buildingID, &req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to create review")
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, successResponse(review, "Review created"))
}

func (h *BuildingHandler) buildingIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	buildingID := chi.URLParam(r, "buildingID")
	if _, err := uuid.Parse(buildingID); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid building ID format")
		return "", false
	}
	return buildingID, true
}
