package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/http/response"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
	"github.com/yungbote/catalog-backend/internal/services"
)

type LinkHandler struct {
	log   *logger.Logger
	links services.LinkService
}

func NewLinkHandler(log *logger.Logger, links services.LinkService) *LinkHandler {
	return &LinkHandler{
		log:   log.With("handler", "LinkHandler"),
		links: links,
	}
}

// AttachItem handles POST /api/cat/:catId/item and returns the updated category.
func (h *LinkHandler) AttachItem(c *gin.Context) {
	var item catalog.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		respondBadRequest(c, err)
		return
	}
	cat, err := h.links.AttachItemToCategory(c.Request.Context(), c.Param("catId"), item)
	if err != nil {
		respondServiceError(c, h.log, "link.attach", err)
		return
	}
	response.RespondOK(c, cat)
}

// AddItem handles POST /api/pro5/item/:categoryId/category and returns the
// created item.
func (h *LinkHandler) AddItem(c *gin.Context) {
	var item catalog.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		respondBadRequest(c, err)
		return
	}
	created, err := h.links.AddItemToCategory(c.Request.Context(), c.Param("categoryId"), item)
	if err != nil {
		respondServiceError(c, h.log, "link.add", err)
		return
	}
	response.RespondCreated(c, itemPath+created.ID, created)
}
