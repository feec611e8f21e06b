package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"toilet-map-service/internal/util"
)

// Action tags the kind of mutation a rate-limit record belongs to. The set
// is closed; handlers never pass free-form strings.
type Action string

const (
	ActionPassword Action = "password"
	ActionReview   Action = "review"
	ActionToilet   Action = "toilet"
	ActionBuilding Action = "building"
	ActionReport   Action = "report"
	ActionVote     Action = "vote"
)

// Policy describes one check: how many records of an action an identity may
// accumulate inside the trailing window. A non-empty TargetID scopes the
// count to that one resource; empty counts across all targets.
type Policy struct {
	Action   Action
	MaxCount int
	Window   time.Duration
	TargetID string
}

// Result is the outcome of a check. Remaining is how many further attempts
// the window still admits, never negative.
type Result struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// Store is the durable log of recorded actions. Implemented over the
// rate_limits table; an empty targetID matches regardless of target on
// CountSince and stores NULL on Insert.
type Store interface {
	CountSince(ctx context.Context, identityHash string, action Action, targetID string, since time.Time) (int, error)
	Insert(ctx context.Context, identityHash string, action Action, targetID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Limiter makes allow/deny decisions against the Store. Checking has no
// side effects; recording an attempt is the Recorder's job, so callers can
// evaluate several policies before committing anything.
type Limiter struct {
	store    Store
	failOpen bool
	logger   *zap.Logger
	now      func() time.Time
}

func NewLimiter(store Store, failOpen bool, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:    store,
		failOpen: failOpen,
		logger:   logger,
		now:      time.Now,
	}
}

// Check counts matching records inside the policy window and admits the
// attempt while the count is strictly below MaxCount.
//
// When the count query fails the limiter cannot know the true count. With
// failOpen set (the default) it treats the count as zero and admits,
// trading strict abuse prevention for availability; otherwise it denies.
func (l *Limiter) Check(ctx context.Context, identityHash string, policy Policy) Result {
	since := l.now().Add(-policy.Window)

	count, err := l.store.CountSince(ctx, identityHash, policy.Action, policy.TargetID, since)
	if err != nil {
		l.logger.Warn("Rate limit count query failed",
			util.String("action", string(policy.Action)),
			util.Bool("fail_open", l.failOpen),
			util.ErrorField(err),
		)
		if !l.failOpen {
			return Result{Allowed: false, Remaining: 0}
		}
		count = 0
	}

	remaining := policy.MaxCount - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count < policy.MaxCount,
		Remaining: remaining,
	}
}
