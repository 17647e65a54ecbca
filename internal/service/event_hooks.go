package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/jobs"
)

// AwardJobType identifies retry jobs carrying a models.AwardRequest.
const AwardJobType = "points.award"

type awarder interface {
	Award(ctx context.Context, req models.AwardRequest) (models.AwardOutcome, error)
}

type retryEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// EventHooks is the in-process entry point used by domain handlers once their own
// write has committed. Hooks never fail the caller.
type EventHooks struct {
	awards  awarder
	retries retryEnqueuer
	logger  *zap.Logger
	timeout time.Duration
}

// NewEventHooks builds hooks. retries may be nil, in which case storage failures are only logged.
func NewEventHooks(awards awarder, retries retryEnqueuer, logger *zap.Logger) *EventHooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHooks{awards: awards, retries: retries, logger: logger, timeout: 5 * time.Second}
}

// SetRetryQueue attaches the queue after construction, since the queue's handler is HandleRetry.
func (h *EventHooks) SetRetryQueue(retries retryEnqueuer) {
	h.retries = retries
}

// OneToOneLogged and the methods below award one event each. remarks is stored
// on the ledger entry as free text.
func (h *EventHooks) OneToOneLogged(ctx context.Context, userID, meetingID, remarks string) models.AwardOutcome {
	return h.fire(ctx, models.AwardRequest{UserID: userID, PointKey: models.PointKeyOneToOne, SourceType: models.SourceOneToOne, SourceID: meetingID, Remarks: remarks})
}

func (h *EventHooks) ReferralCreated(ctx context.Context, userID, referralID, remarks string) models.AwardOutcome {
	return h.fire(ctx, models.AwardRequest{UserID: userID, PointKey: models.PointKeyReferrals, SourceType: models.SourceReferral, SourceID: referralID, Remarks: remarks})
}

func (h *EventHooks) ThankYouNoteSubmitted(ctx context.Context, userID, slipID, remarks string) models.AwardOutcome {
	return h.fire(ctx, models.AwardRequest{UserID: userID, PointKey: models.PointKeyThankYouNotes, SourceType: models.SourceThankYouNote, SourceID: slipID, Remarks: remarks})
}

func (h *EventHooks) ChiefGuestHosted(ctx context.Context, userID, guestID, remarks string) models.AwardOutcome {
	return h.fire(ctx, models.AwardRequest{UserID: userID, PointKey: models.PointKeyChiefGuests, SourceType: models.SourceChiefGuest, SourceID: guestID, Remarks: remarks})
}

func (h *EventHooks) PowerDateLogged(ctx context.Context, userID, powerDateID, remarks string) models.AwardOutcome {
	return h.fire(ctx, models.AwardRequest{UserID: userID, PointKey: models.PointKeyPowerDates, SourceType: models.SourcePowerDate, SourceID: powerDateID, Remarks: remarks})
}

// CommunityPostPublished awards the point key named after the post type.
func (h *EventHooks) CommunityPostPublished(ctx context.Context, userID, postID, postType, remarks string) models.AwardOutcome {
	return h.fire(ctx, models.AwardRequest{UserID: userID, PointKey: postType, SourceType: models.SourceCommunity, SourceID: postID, Remarks: remarks})
}

// HandleRetry is the jobs.Handler for the award retry queue.
func (h *EventHooks) HandleRetry(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(models.AwardRequest)
	if !ok {
		h.logger.Error("discarding award retry with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	outcome, err := h.awards.Award(ctx, req)
	if err != nil {
		if errors.Is(err, appErrors.ErrStorageFailure) {
			return err
		}
		h.logger.Error("award retry rejected", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	h.logger.Info("award retry completed",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.String("outcome", string(outcome)))
	return nil
}

func (h *EventHooks) fire(ctx context.Context, req models.AwardRequest) models.AwardOutcome {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	outcome, err := h.awards.Award(ctx, req)
	if err == nil {
		return outcome
	}

	fields := []zap.Field{
		zap.String("user_id", req.UserID),
		zap.String("point_key", req.PointKey),
		zap.String("source_type", string(req.SourceType)),
		zap.String("source_id", req.SourceID),
		zap.Error(err),
	}
	if !errors.Is(err, appErrors.ErrStorageFailure) || h.retries == nil {
		h.logger.Error("award failed", fields...)
		return ""
	}
	job := jobs.Job{ID: models.NaturalKey{UserID: req.UserID, PointKey: req.PointKey, SourceType: req.SourceType, SourceID: req.SourceID}.String(), Type: AwardJobType, Payload: req}
	if qerr := h.retries.TryEnqueue(job); qerr != nil {
		h.logger.Error("award failed and could not be queued for retry", append(fields, zap.NamedError("queue_error", qerr))...)
		return ""
	}
	h.logger.Warn("award failed; queued for retry", fields...)
	return ""
}
