package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trainhub/scheduling-api/internal/service"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
	"github.com/trainhub/scheduling-api/pkg/response"
)

// BookingHandler manages resource booking endpoints.
type BookingHandler struct {
	service *service.BookingService
}

// NewBookingHandler constructs handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// Request godoc
// @Summary Book resource units for a schedule day
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.RequestBookingRequest true "Booking request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Request(c *gin.Context) {
	var req service.RequestBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	booking, err := h.service.Request(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Release godoc
// @Summary Release a confirmed booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/release [post]
func (h *BookingHandler) Release(c *gin.Context) {
	booking, err := h.service.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// ListByResource godoc
// @Summary List a resource's bookings
// @Tags Bookings
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/bookings [get]
func (h *BookingHandler) ListByResource(c *gin.Context) {
	bookings, err := h.service.ListByResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// ListByScheduleDay godoc
// @Summary List the bookings attached to a schedule day
// @Tags Bookings
// @Produce json
// @Param id path string true "Schedule day ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-days/{id}/bookings [get]
func (h *BookingHandler) ListByScheduleDay(c *gin.Context) {
	bookings, err := h.service.ListByScheduleDay(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}
