package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/wayfarer-backend/internal/http/response"
	"github.com/yungbote/wayfarer-backend/internal/services"
)

type ModelHandler struct {
	models services.ModelService
}

func NewModelHandler(models services.ModelService) *ModelHandler {
	return &ModelHandler{models: models}
}

// GET /api/models
func (h *ModelHandler) List(c *gin.Context) {
	limit, err := queryLimit(c, 50)
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	rows, err := h.models.List(c.Request.Context(), limit)
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"models": rows})
}

// GET /api/models/active
// Answers {"model": null} before the first promotion.
func (h *ModelHandler) GetActive(c *gin.Context) {
	row, err := h.models.GetActive(c.Request.Context())
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model": row})
}

// GET /api/models/:version
func (h *ModelHandler) Get(c *gin.Context) {
	row, err := h.models.GetByVersion(c.Request.Context(), c.Param("version"))
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model": row})
}

// POST /api/models/:version/activate
func (h *ModelHandler) Activate(c *gin.Context) {
	row, err := h.models.Activate(c.Request.Context(), c.Param("version"))
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model": row})
}
