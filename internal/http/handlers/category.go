package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/http/response"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
	"github.com/yungbote/catalog-backend/internal/services"
)

const categoryPath = "/api/pro5/category/"

type CategoryHandler struct {
	log        *logger.Logger
	categories services.CategoryService
}

func NewCategoryHandler(log *logger.Logger, categories services.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		log:        log.With("handler", "CategoryHandler"),
		categories: categories,
	}
}

// POST /api/pro5/category
func (h *CategoryHandler) Create(c *gin.Context) {
	var body catalog.Category
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	created, _, err := h.categories.Create(c.Request.Context(), body)
	if err != nil {
		respondServiceError(c, h.log, "category.create", err)
		return
	}
	response.RespondCreated(c, categoryPath+created.ID, created)
}

// PUT /api/pro5/category/:id
func (h *CategoryHandler) Update(c *gin.Context) {
	var body catalog.Category
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	updated, err := h.categories.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		respondServiceError(c, h.log, "category.update", err)
		return
	}
	response.RespondOK(c, updated)
}

// PATCH /api/categories/:id
func (h *CategoryHandler) PartialUpdate(c *gin.Context) {
	var patch services.CategoryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, err)
		return
	}
	updated, err := h.categories.PartialUpdate(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondServiceError(c, h.log, "category.partial_update", err)
		return
	}
	response.RespondOK(c, updated)
}

func (h *CategoryHandler) List(c *gin.Context) {
	out, err := h.categories.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.log, "category.list", err)
		return
	}
	response.RespondOK(c, out)
}

func (h *CategoryHandler) Get(c *gin.Context) {
	out, err := h.categories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.log, "category.get", err)
		return
	}
	response.RespondOK(c, out)
}

func (h *CategoryHandler) Delete(c *gin.Context) {
	if err := h.categories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, h.log, "category.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}
