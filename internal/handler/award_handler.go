package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/chapter-points-api/internal/dto"
	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/response"
)

type awardService interface {
	Award(ctx context.Context, req models.AwardRequest) (models.AwardOutcome, error)
}

type eventHooks interface {
	OneToOneLogged(ctx context.Context, userID, meetingID, remarks string) models.AwardOutcome
	ReferralCreated(ctx context.Context, userID, referralID, remarks string) models.AwardOutcome
	ThankYouNoteSubmitted(ctx context.Context, userID, slipID, remarks string) models.AwardOutcome
	ChiefGuestHosted(ctx context.Context, userID, guestID, remarks string) models.AwardOutcome
	PowerDateLogged(ctx context.Context, userID, powerDateID, remarks string) models.AwardOutcome
	CommunityPostPublished(ctx context.Context, userID, postID, postType, remarks string) models.AwardOutcome
}

// AwardHandler accepts award events from services outside this process.
type AwardHandler struct {
	service   awardService
	hooks     eventHooks
	validator *validator.Validate
}

// NewAwardHandler builds a new handler. hooks may be nil when event intake is not exposed.
func NewAwardHandler(service awardService, hooks eventHooks, validate *validator.Validate) *AwardHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &AwardHandler{service: service, hooks: hooks, validator: validate}
}

// Award godoc
// @Summary Report a qualifying event
// @Description Idempotent on (user_id, point_key, source_type, source_id). Retry on 503.
// @Tags Awards
// @Accept json
// @Produce json
// @Param X-Internal-Token header string true "Shared service token"
// @Param payload body dto.AwardEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /internal/awards [post]
func (h *AwardHandler) Award(c *gin.Context) {
	var req dto.AwardEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid award payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid award payload"))
		return
	}
	outcome, err := h.service.Award(c.Request.Context(), models.AwardRequest{
		UserID:     req.UserID,
		PointKey:   req.PointKey,
		SourceType: models.SourceType(req.SourceType),
		SourceID:   req.SourceID,
		Remarks:    req.Remarks,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AwardEventResponse{
		Outcome:  string(outcome),
		UserID:   req.UserID,
		PointKey: req.PointKey,
		SourceID: req.SourceID,
	}, nil)
}

// Event godoc
// @Summary Notify a domain event
// @Description Awards through the event hooks. Storage failures are retried in the background, so the call never fails on them.
// @Tags Awards
// @Accept json
// @Produce json
// @Param X-Internal-Token header string true "Shared service token"
// @Param event path string true "one-to-one, referral, thank-you-note, chief-guest, power-date or community-post"
// @Param payload body dto.EventNotification true "Event payload"
// @Success 202 {object} response.Envelope
// @Router /internal/events/{event} [post]
func (h *AwardHandler) Event(c *gin.Context) {
	if h.hooks == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	var req dto.EventNotification
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	ctx := c.Request.Context()
	var outcome models.AwardOutcome
	switch c.Param("event") {
	case "one-to-one":
		outcome = h.hooks.OneToOneLogged(ctx, req.UserID, req.SourceID, req.Remarks)
	case "referral":
		outcome = h.hooks.ReferralCreated(ctx, req.UserID, req.SourceID, req.Remarks)
	case "thank-you-note":
		outcome = h.hooks.ThankYouNoteSubmitted(ctx, req.UserID, req.SourceID, req.Remarks)
	case "chief-guest":
		outcome = h.hooks.ChiefGuestHosted(ctx, req.UserID, req.SourceID, req.Remarks)
	case "power-date":
		outcome = h.hooks.PowerDateLogged(ctx, req.UserID, req.SourceID, req.Remarks)
	case "community-post":
		if req.PostType == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "post_type is required for community posts"))
			return
		}
		outcome = h.hooks.CommunityPostPublished(ctx, req.UserID, req.SourceID, req.PostType, req.Remarks)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown event "+c.Param("event")))
		return
	}

	status := "PENDING"
	if outcome != "" {
		status = string(outcome)
	}
	response.JSON(c, http.StatusAccepted, gin.H{"outcome": status, "user_id": req.UserID, "source_id": req.SourceID}, nil)
}
