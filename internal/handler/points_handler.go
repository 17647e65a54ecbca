package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/chapter-points-api/internal/dto"
	"github.com/noah-isme/chapter-points-api/internal/middleware"
	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/response"
)

type pointsQueryService interface {
	GetTotal(ctx context.Context, userID, pointKey string) (int64, error)
	UserSummary(ctx context.Context, userID string) (*models.UserTotal, error)
	History(ctx context.Context, userID string, page, pageSize int) ([]models.LedgerEntry, *models.Pagination, error)
	Leaderboard(ctx context.Context, filter models.LeaderboardFilter) ([]models.LeaderboardEntry, bool, error)
	Export(ctx context.Context, filter models.LeaderboardFilter, format string) ([]byte, string, string, error)
}

// PointsHandler exposes totals, history and leaderboard endpoints.
type PointsHandler struct {
	service   pointsQueryService
	validator *validator.Validate
}

// NewPointsHandler builds a new handler.
func NewPointsHandler(service pointsQueryService, validate *validator.Validate) *PointsHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &PointsHandler{service: service, validator: validate}
}

// Total godoc
// @Summary Get a user's total for one point key
// @Tags Points
// @Produce json
// @Param userId path string true "User ID"
// @Param pointKey path string true "Point key"
// @Success 200 {object} response.Envelope
// @Router /points/users/{userId}/totals/{pointKey} [get]
func (h *PointsHandler) Total(c *gin.Context) {
	userID, pointKey := c.Param("userId"), c.Param("pointKey")
	value, err := h.service.GetTotal(c.Request.Context(), userID, pointKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.PointTotalResponse{UserID: userID, PointKey: pointKey, Value: value}, nil)
}

// Summary godoc
// @Summary Get a user's totals per point key
// @Tags Points
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /points/users/{userId}/summary [get]
func (h *PointsHandler) Summary(c *gin.Context) {
	summary, err := h.service.UserSummary(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// History godoc
// @Summary List a user's ledger entries
// @Tags Points
// @Produce json
// @Param userId path string true "User ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /points/users/{userId}/history [get]
func (h *PointsHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, pagination, err := h.service.History(c.Request.Context(), c.Param("userId"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Leaderboard godoc
// @Summary Ranked points leaderboard
// @Tags Points
// @Produce json
// @Param source query string false "aggregate or ledger"
// @Param pointKey query string false "Restrict to one point key"
// @Param userIds query string false "Comma separated user IDs"
// @Param since query string false "RFC3339 lower bound (ledger only)"
// @Param until query string false "RFC3339 upper bound (ledger only)"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /points/leaderboard [get]
func (h *PointsHandler) Leaderboard(c *gin.Context) {
	filter, _, err := h.leaderboardFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, cached, err := h.service.Leaderboard(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	middleware.SetMeta(c, "source", leaderboardSource(filter))
	response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c))
}

// ExportLeaderboard godoc
// @Summary Download the leaderboard
// @Tags Points
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /points/leaderboard/export [get]
func (h *PointsHandler) ExportLeaderboard(c *gin.Context) {
	filter, format, err := h.leaderboardFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if format == "" {
		format = "csv"
	}
	body, contentType, filename, err := h.service.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, contentType, body)
}

func (h *PointsHandler) leaderboardFilter(c *gin.Context) (models.LeaderboardFilter, string, error) {
	var query dto.LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return models.LeaderboardFilter{}, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leaderboard query")
	}
	if err := h.validator.Struct(query); err != nil {
		return models.LeaderboardFilter{}, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leaderboard query")
	}
	if query.Since != nil && query.Until != nil && !query.Until.After(*query.Since) {
		return models.LeaderboardFilter{}, "", appErrors.Clone(appErrors.ErrValidation, "until must be after since")
	}
	return models.LeaderboardFilter{
		Source:   models.LeaderboardSource(query.Source),
		PointKey: strings.TrimSpace(query.PointKey),
		UserIDs:  splitIDs(query.UserIDs),
		Since:    query.Since,
		Until:    query.Until,
		Limit:    query.Limit,
	}, query.Format, nil
}

func leaderboardSource(filter models.LeaderboardFilter) models.LeaderboardSource {
	if filter.Since != nil || filter.Until != nil || filter.Source == models.LeaderboardSourceLedger {
		return models.LeaderboardSourceLedger
	}
	return models.LeaderboardSourceAggregate
}

func splitIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
