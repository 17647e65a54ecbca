package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/chapter-points-api/internal/dto"
	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/response"
)

type reconciliationService interface {
	DetectDrift(ctx context.Context, userIDs []string) (*models.DriftReport, error)
	Repair(ctx context.Context, userIDs []string) (*models.DriftReport, error)
}

// ReconciliationHandler exposes ledger audit endpoints.
type ReconciliationHandler struct {
	service   reconciliationService
	validator *validator.Validate
}

// NewReconciliationHandler builds a new handler.
func NewReconciliationHandler(service reconciliationService, validate *validator.Validate) *ReconciliationHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ReconciliationHandler{service: service, validator: validate}
}

// Drift godoc
// @Summary Compare aggregates with ledger totals
// @Tags Reconciliation
// @Produce json
// @Param userIds query string false "Comma separated user IDs"
// @Success 200 {object} response.Envelope
// @Router /points/reconciliation/drift [get]
func (h *ReconciliationHandler) Drift(c *gin.Context) {
	report, err := h.service.DetectDrift(c.Request.Context(), splitIDs(c.Query("userIds")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Repair godoc
// @Summary Overwrite drifted aggregates with ledger totals
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param payload body dto.RepairRequest false "Users to repair; empty repairs everyone"
// @Success 200 {object} response.Envelope
// @Router /points/reconciliation/repair [post]
func (h *ReconciliationHandler) Repair(c *gin.Context) {
	var req dto.RepairRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid repair payload"))
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid repair payload"))
		return
	}
	report, err := h.service.Repair(c.Request.Context(), req.UserIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
