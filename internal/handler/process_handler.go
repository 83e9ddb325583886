package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/pkg/response"
)

type processService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateProcessRequest) (*models.Process, error)
	List(ctx context.Context, claims *models.JWTClaims) ([]models.Process, error)
	Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateProcessRequest) (*models.Process, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) error
}

// ProcessHandler exposes process endpoints.
type ProcessHandler struct {
	service processService
}

// NewProcessHandler constructs the handler.
func NewProcessHandler(svc processService) *ProcessHandler {
	return &ProcessHandler{service: svc}
}

// Create godoc
// @Summary Create process
// @Tags Processes
// @Accept json
// @Produce json
// @Param payload body dto.CreateProcessRequest true "Process payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /processes [post]
func (h *ProcessHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateProcessRequest
	if !bindJSON(c, &req, "invalid process payload") {
		return
	}
	process, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, process)
}

// List godoc
// @Summary List processes
// @Tags Processes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /processes [get]
func (h *ProcessHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Update godoc
// @Summary Update process
// @Tags Processes
// @Accept json
// @Produce json
// @Param id path string true "Process ID"
// @Param payload body dto.UpdateProcessRequest true "Process payload"
// @Success 200 {object} response.Envelope
// @Router /processes/{id} [put]
func (h *ProcessHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateProcessRequest
	if !bindJSON(c, &req, "invalid process payload") {
		return
	}
	process, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, process, nil)
}

// Delete godoc
// @Summary Delete process
// @Tags Processes
// @Param id path string true "Process ID"
// @Success 204
// @Router /processes/{id} [delete]
func (h *ProcessHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
