package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nordrail/storefront-api/internal/models"
	"github.com/nordrail/storefront-api/internal/service"
	appErrors "github.com/nordrail/storefront-api/pkg/errors"
	"github.com/nordrail/storefront-api/pkg/response"
)

// CatalogHandler exposes the storefront item endpoints.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler creates a new handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// List godoc
// @Summary List catalog items
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /items [get]
func (h *CatalogHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// Create godoc
// @Summary Create catalog item
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body models.CreateItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /items [post]
func (h *CatalogHandler) Create(c *gin.Context) {
	var req models.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid item payload"))
		return
	}

	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}
