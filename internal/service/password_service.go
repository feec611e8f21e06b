package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"toilet-map-service/internal/events"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/repository"
	"toilet-map-service/internal/util"
)

const (
	VoteConfirm = "confirm"
	VoteWrong   = "wrong"
)

// PasswordService handles door-code registration, voting, and reporting
type PasswordService struct {
	passwordRepo repository.PasswordRepository
	toiletRepo   repository.ToiletRepository
	limiter      *ratelimit.Limiter
	recorder     *ratelimit.Recorder
	publisher    *events.Publisher
	logger       *zap.Logger
}

func NewPasswordService(
	passwordRepo repository.PasswordRepository,
	toiletRepo repository.ToiletRepository,
	limiter *ratelimit.Limiter,
	recorder *ratelimit.Recorder,
	publisher *events.Publisher,
	logger *zap.Logger,
) *PasswordService {
	return &PasswordService{
		passwordRepo: passwordRepo,
		toiletRepo:   toiletRepo,
		limiter:      limiter,
		recorder:     recorder,
		publisher:    publisher,
		logger:       logger,
	}
}

// PasswordCreateRequest registers a door code for a toilet, creating the
// toilet on the fly when the location is new.
type PasswordCreateRequest struct {
	Location string `json:"location"`
	Password string `json:"password"`
}

// VoteRequest is a confirm/wrong vote, optionally carrying a replacement
// code when the voter knows the current one is wrong.
type VoteRequest struct {
	Vote        string `json:"vote"`
	NewPassword string `json:"new_password"`
}

// VoteResult is the vote response: the updated password plus the
// replacement, when one was created.
type VoteResult struct {
	Voted           *model.Password `json:"voted"`
	CreatedPassword *model.Password `json:"created_password,omitempty"`
}

func (s *PasswordService) ListByBuilding(ctx context.Context, buildingID string) ([]model.Password, error) {
	return s.passwordRepo.ListByBuilding(ctx, buildingID)
}

// Create registers a door code. The global check runs before the toilet
// upsert so a throttled caller causes no writes at all.
func (s *PasswordService) Create(ctx context.Context, identityHash, buildingID string, req *PasswordCreateRequest) (*model.Password, error) {
	location := util.SanitizeInput(req.Location)
	passwordText := util.SanitizeInput(req.Password)
	if location == "" || passwordText == "" {
		return nil, ErrInvalidInput
	}

	check := s.limiter.Check(ctx, identityHash, ratelimit.PasswordCreatePolicy())
	if !check.Allowed {
		s.publisher.Publish(ctx, events.AbuseEvent{
			EventType:    events.EventGlobalLimited,
			IdentityHash: identityHash,
			Action:       string(ratelimit.ActionPassword),
		})
		return nil, ErrGlobalLimited
	}

	toilet, err := s.toiletRepo.Upsert(ctx, buildingID, location)
	if err != nil {
		return nil, err
	}

	password, err := s.passwordRepo.Insert(ctx, toilet.ID, passwordText)
	if err != nil {
		return nil, err
	}
	password.Location = toilet.Location

	s.recorder.Record(ctx, identityHash, ratelimit.ActionPassword, "")

	return password, nil
}

// Vote applies a confirm or wrong vote to a password. The target check (one
// vote per password per day) runs first and short-circuits; the global check
// is never consulted on a target denial. Both vote branches record,
// including when a wrong vote also creates a replacement password.
func (s *PasswordService) Vote(ctx context.Context, identityHash, passwordID string, req *VoteRequest) (*VoteResult, error) {
	if req.Vote != VoteConfirm && req.Vote != VoteWrong {
		return nil, ErrInvalidInput
	}

	if err := s.checkVotePolicies(ctx, identityHash, passwordID, ratelimit.ActionVote,
		ratelimit.VoteTargetPolicy(passwordID), ratelimit.VoteGlobalPolicy()); err != nil {
		return nil, err
	}

	current, err := s.passwordRepo.GetByID(ctx, passwordID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPasswordNotFound
		}
		return nil, err
	}

	if req.Vote == VoteConfirm {
		updated, err := s.passwordRepo.IncrementConfirm(ctx, passwordID)
		if err != nil {
			return nil, err
		}
		s.recorder.Record(ctx, identityHash, ratelimit.ActionVote, passwordID)
		return &VoteResult{Voted: updated}, nil
	}

	updated, err := s.passwordRepo.IncrementWrong(ctx, passwordID)
	if err != nil {
		return nil, err
	}

	result := &VoteResult{Voted: updated}

	// A wrong-voter may supply the code that actually works; losing the
	// replacement insert must not lose the vote itself.
	if replacement := strings.TrimSpace(req.NewPassword); replacement != "" {
		created, err := s.passwordRepo.Insert(ctx, current.ToiletID, util.SanitizeInput(replacement))
		if err != nil {
			s.logger.Warn("Failed to create replacement password",
				util.String("password_id", passwordID),
				util.ErrorField(err))
		} else {
			result.CreatedPassword = created
		}
	}

	s.recorder.Record(ctx, identityHash, ratelimit.ActionVote, passwordID)

	return result, nil
}

// Report increments a password's report count, deactivating it at the
// threshold. One report per password per identity per day.
func (s *PasswordService) Report(ctx context.Context, identityHash, passwordID string) (*model.Password, error) {
	if err := s.checkVotePolicies(ctx, identityHash, passwordID, ratelimit.ActionReport,
		ratelimit.ReportTargetPolicy(passwordID), ratelimit.ReportGlobalPolicy()); err != nil {
		return nil, err
	}

	updated, err := s.passwordRepo.IncrementReport(ctx, passwordID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPasswordNotFound
		}
		return nil, err
	}

	if !updated.IsActive {
		s.publisher.Publish(ctx, events.AbuseEvent{
			EventType:    events.EventPasswordDeactivated,
			IdentityHash: identityHash,
			Action:       string(ratelimit.ActionReport),
			TargetID:     passwordID,
		})
	}

	s.recorder.Record(ctx, identityHash, ratelimit.ActionReport, passwordID)

	return updated, nil
}

// checkVotePolicies runs the target-then-global sequence shared by vote and
// report. A target denial returns without evaluating the global policy.
func (s *PasswordService) checkVotePolicies(ctx context.Context, identityHash, targetID string, action ratelimit.Action, targetPolicy, globalPolicy ratelimit.Policy) error {
	targetCheck := s.limiter.Check(ctx, identityHash, targetPolicy)
	if !targetCheck.Allowed {
		s.publisher.Publish(ctx, events.AbuseEvent{
			EventType:    events.EventTargetLimited,
			IdentityHash: identityHash,
			Action:       string(action),
			TargetID:     targetID,
		})
		return ErrTargetLimited
	}

	globalCheck := s.limiter.Check(ctx, identityHash, globalPolicy)
	if !globalCheck.Allowed {
		s.publisher.Publish(ctx, events.AbuseEvent{
			EventType:    events.EventGlobalLimited,
			IdentityHash: identityHash,
			Action:       string(action),
		})
		return ErrGlobalLimited
	}

	return nil
}
