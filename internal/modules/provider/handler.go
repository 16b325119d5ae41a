package provider

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"barberbook/internal/domain"
	"barberbook/internal/modules/booking"
	"barberbook/internal/pkg/response"
	"barberbook/internal/schedule"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes registers the login endpoint. Base path is /api/v1.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.Login)
}

// RegisterRoutes registers the management endpoints under a group that
// already enforces the provider JWT.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/schedule/:date", h.DaySchedule)
	rg.GET("/schedule", h.WeekSchedule)

	rg.POST("/bookings/:id/approve", h.Approve)
	rg.POST("/bookings/:id/reject", h.Reject)
	rg.POST("/bookings/:id/cancel", h.Cancel)

	rg.GET("/config", h.Config)
	rg.PUT("/config", h.UpdateConfig)

	rg.POST("/blocks", h.BlockSlot)
	rg.DELETE("/blocks", h.UnblockSlot)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	token, err := h.service.Login(req.Password)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, "BAD_CREDENTIALS", "Wrong password")
		return
	}
	response.OK(c, http.StatusOK, LoginResponse{Token: token})
}

func (h *Handler) DaySchedule(c *gin.Context) {
	view, err := h.service.DaySchedule(c.Param("date"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return
	}
	response.OK(c, http.StatusOK, view)
}

func (h *Handler) WeekSchedule(c *gin.Context) {
	from := time.Now().In(h.service.store.Location())
	if v := c.Query("from"); v != "" {
		t, err := domain.ParseDay(v, h.service.store.Location())
		if err != nil {
			response.Fail(c, http.StatusBadRequest, "INVALID_DATE", "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	response.OK(c, http.StatusOK, gin.H{"days": h.service.WeekSchedule(from)})
}

func (h *Handler) Approve(c *gin.Context) { h.decide(c, h.service.Approve) }
func (h *Handler) Reject(c *gin.Context)  { h.decide(c, h.service.Reject) }
func (h *Handler) Cancel(c *gin.Context)  { h.decide(c, h.service.Cancel) }

func (h *Handler) decide(c *gin.Context, act func(ctx context.Context, id int64) (*domain.Booking, error)) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid booking ID")
		return
	}

	b, err := act(c.Request.Context(), id)
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		response.Fail(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, booking.ErrInvalidTransition):
		response.Fail(c, http.StatusConflict, "ALREADY_DECIDED", err.Error())
	case err != nil:
		response.Fail(c, http.StatusInternalServerError, "BOOKING_ERROR", err.Error())
	default:
		response.OK(c, http.StatusOK, h.service.toView(b))
	}
}

func (h *Handler) Config(c *gin.Context) {
	response.OK(c, http.StatusOK, h.service.Config())
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.service.UpdateConfig(c.Request.Context(), req); err != nil {
		if errors.Is(err, schedule.ErrInvalidConfig) {
			response.Fail(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
			return
		}
		response.Fail(c, http.StatusInternalServerError, "CONFIG_ERROR", err.Error())
		return
	}
	response.OK(c, http.StatusOK, h.service.Config())
}

func (h *Handler) BlockSlot(c *gin.Context) {
	h.blockAction(c, h.service.BlockSlot)
}

func (h *Handler) UnblockSlot(c *gin.Context) {
	h.blockAction(c, h.service.UnblockSlot)
}

func (h *Handler) blockAction(c *gin.Context, act func(ctx context.Context, raw string) error) {
	var req SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	err := act(c.Request.Context(), req.Slot)
	switch {
	case errors.Is(err, ErrSlotOccupied):
		response.Fail(c, http.StatusConflict, "SLOT_OCCUPIED", err.Error())
	case err != nil:
		response.Fail(c, http.StatusBadRequest, "SLOT_ERROR", err.Error())
	default:
		response.OK(c, http.StatusOK, gin.H{"slot": req.Slot})
	}
}
