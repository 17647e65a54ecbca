package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/chapter-points-api/internal/dto"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/response"
)

type pointCatalogService interface {
	List(ctx context.Context, includeInactive bool) ([]dto.PointDefinitionItem, error)
	Create(ctx context.Context, req dto.CreatePointDefinitionRequest) (*dto.PointDefinitionItem, error)
	Update(ctx context.Context, key string, req dto.UpdatePointDefinitionRequest) (*dto.PointDefinitionItem, error)
	Delete(ctx context.Context, key string) error
}

// PointDefinitionHandler exposes catalog administration endpoints.
type PointDefinitionHandler struct {
	service pointCatalogService
}

// NewPointDefinitionHandler builds a new handler.
func NewPointDefinitionHandler(service pointCatalogService) *PointDefinitionHandler {
	return &PointDefinitionHandler{service: service}
}

// List godoc
// @Summary List point definitions
// @Tags PointDefinitions
// @Produce json
// @Param includeInactive query bool false "Include inactive definitions"
// @Success 200 {object} response.Envelope
// @Router /points/definitions [get]
func (h *PointDefinitionHandler) List(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.DefaultQuery("includeInactive", "false"))
	items, err := h.service.List(c.Request.Context(), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Create a point definition
// @Tags PointDefinitions
// @Accept json
// @Produce json
// @Param payload body dto.CreatePointDefinitionRequest true "Definition payload"
// @Success 201 {object} response.Envelope
// @Router /points/definitions [post]
func (h *PointDefinitionHandler) Create(c *gin.Context) {
	var req dto.CreatePointDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid point definition payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update a point definition
// @Tags PointDefinitions
// @Accept json
// @Produce json
// @Param key path string true "Point key"
// @Param payload body dto.UpdatePointDefinitionRequest true "Definition payload"
// @Success 200 {object} response.Envelope
// @Router /points/definitions/{key} [put]
func (h *PointDefinitionHandler) Update(c *gin.Context) {
	var req dto.UpdatePointDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid point definition payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Soft-delete a point definition
// @Tags PointDefinitions
// @Param key path string true "Point key"
// @Success 204
// @Router /points/definitions/{key} [delete]
func (h *PointDefinitionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
