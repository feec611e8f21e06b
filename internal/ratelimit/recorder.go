package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"toilet-map-service/internal/util"
)

const (
	// cleanupProbability gates the inline retention sweep; amortizes the
	// delete across recordings instead of running a scheduled job.
	cleanupProbability = 0.01

	// retentionPeriod must stay comfortably above the longest policy
	// window (24h) so the sweep can never delete rows a check still needs.
	retentionPeriod = 7 * 24 * time.Hour
)

// Recorder appends records after successful mutations and opportunistically
// prunes old rows. Every failure in here is logged and swallowed: by the
// time Record runs the domain mutation has already succeeded, and a missed
// record merely risks one extra admitted action later.
type Recorder struct {
	store     Store
	logger    *zap.Logger
	now       func() time.Time
	randFloat func() float64
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:     store,
		logger:    logger,
		now:       time.Now,
		randFloat: rand.Float64,
	}
}

// Record inserts one record for the identity and action, target-scoped when
// targetID is non-empty. Callers invoke it only on the success paths their
// endpoint policy names.
func (r *Recorder) Record(ctx context.Context, identityHash string, action Action, targetID string) {
	if err := r.store.Insert(ctx, identityHash, action, targetID); err != nil {
		r.logger.Warn("Failed to record rate limit action",
			util.String("action", string(action)),
			util.ErrorField(err),
		)
		return
	}

	if r.randFloat() < cleanupProbability {
		r.cleanup(ctx)
	}
}

func (r *Recorder) cleanup(ctx context.Context) {
	cutoff := r.now().Add(-retentionPeriod)
	deleted, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Warn("Rate limit retention cleanup failed", util.ErrorField(err))
		return
	}
	r.logger.Debug("Rate limit retention cleanup completed",
		util.Int("deleted", int(deleted)),
	)
}
