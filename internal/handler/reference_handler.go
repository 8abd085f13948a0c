package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univreg/registrar-api/internal/service"
	"github.com/univreg/registrar-api/pkg/response"
)

// ReferenceHandler exposes lookup table endpoints.
type ReferenceHandler struct {
	references *service.ReferenceService
}

// NewReferenceHandler constructs ReferenceHandler.
func NewReferenceHandler(references *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{references: references}
}

// Departments godoc
// @Summary List departments
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *ReferenceHandler) Departments(c *gin.Context) {
	departments, err := h.references.Departments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// Semesters godoc
// @Summary List semesters
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *ReferenceHandler) Semesters(c *gin.Context) {
	semesters, err := h.references.Semesters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters, nil)
}
