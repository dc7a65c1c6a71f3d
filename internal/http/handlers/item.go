package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/http/response"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
	"github.com/yungbote/catalog-backend/internal/services"
)

const itemPath = "/api/pro5/item/"

type ItemHandler struct {
	log   *logger.Logger
	items services.ItemService
}

func NewItemHandler(log *logger.Logger, items services.ItemService) *ItemHandler {
	return &ItemHandler{
		log:   log.With("handler", "ItemHandler"),
		items: items,
	}
}

func (h *ItemHandler) Create(c *gin.Context) {
	var body catalog.Item
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	created, _, err := h.items.Create(c.Request.Context(), body)
	if err != nil {
		respondServiceError(c, h.log, "item.create", err)
		return
	}
	response.RespondCreated(c, itemPath+created.ID, created)
}

func (h *ItemHandler) Update(c *gin.Context) {
	var body catalog.Item
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	updated, err := h.items.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		respondServiceError(c, h.log, "item.update", err)
		return
	}
	response.RespondOK(c, updated)
}

func (h *ItemHandler) PartialUpdate(c *gin.Context) {
	var patch services.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, err)
		return
	}
	updated, err := h.items.PartialUpdate(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondServiceError(c, h.log, "item.partial_update", err)
		return
	}
	response.RespondOK(c, updated)
}

func (h *ItemHandler) List(c *gin.Context) {
	out, err := h.items.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.log, "item.list", err)
		return
	}
	response.RespondOK(c, out)
}

func (h *ItemHandler) Get(c *gin.Context) {
	out, err := h.items.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.log, "item.get", err)
		return
	}
	response.RespondOK(c, out)
}

func (h *ItemHandler) Delete(c *gin.Context) {
	if err := h.items.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, h.log, "item.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}
