package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/trainhub/scheduling-api/internal/service"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
	"github.com/trainhub/scheduling-api/pkg/response"
)

// AvailabilityHandler exposes the advisory free/busy queries.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Room godoc
// @Summary Check whether a room is free during a slot
// @Tags Availability
// @Produce json
// @Param id path string true "Room ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param start query string true "Start time (HH:MM)"
// @Param end query string true "End time (HH:MM)"
// @Success 200 {object} response.Envelope
// @Router /availability/rooms/{id} [get]
func (h *AvailabilityHandler) Room(c *gin.Context) {
	free, err := h.service.IsRoomFree(c.Request.Context(), c.Param("id"), c.Query("date"), c.Query("start"), c.Query("end"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"room_id": c.Param("id"), "free": free}, nil)
}

// Trainer godoc
// @Summary Check whether a trainer is free during a slot
// @Tags Availability
// @Produce json
// @Param id path string true "Trainer ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param start query string true "Start time (HH:MM)"
// @Param end query string true "End time (HH:MM)"
// @Success 200 {object} response.Envelope
// @Router /availability/trainers/{id} [get]
func (h *AvailabilityHandler) Trainer(c *gin.Context) {
	free, err := h.service.IsTrainerFree(c.Request.Context(), c.Param("id"), c.Query("date"), c.Query("start"), c.Query("end"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"trainer_id": c.Param("id"), "free": free}, nil)
}

// Resource godoc
// @Summary Get the remaining bookable quantity of a resource on a date
// @Tags Availability
// @Produce json
// @Param id path string true "Resource ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /availability/resources/{id} [get]
func (h *AvailabilityHandler) Resource(c *gin.Context) {
	remaining, err := h.service.ResourceAvailability(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"resource_id": c.Param("id"), "date": c.Query("date"), "remaining": remaining}, nil)
}

// RoomCapacity godoc
// @Summary Check whether a room's seat capacity covers a head count
// @Tags Availability
// @Produce json
// @Param id path string true "Room ID"
// @Param seats query int true "Required seats"
// @Success 200 {object} response.Envelope
// @Router /availability/rooms/{id}/capacity [get]
func (h *AvailabilityHandler) RoomCapacity(c *gin.Context) {
	seats, err := strconv.Atoi(c.Query("seats"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "seats must be an integer"))
		return
	}
	fits, err := h.service.RoomFitsSeats(c.Request.Context(), c.Param("id"), seats)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"room_id": c.Param("id"), "seats": seats, "fits": fits}, nil)
}
