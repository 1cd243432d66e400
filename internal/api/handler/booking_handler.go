package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nordtolk/booking-be/internal/api/dto"
	"github.com/nordtolk/booking-be/internal/booking/engine"
)

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.Create(c.Request.Context(), req.UserID, engine.CreateRequest{
		FromLanguageID:       req.FromLanguageID,
		Immediate:            req.Immediate,
		DueDate:              req.DueDate,
		DueTime:              req.DueTime,
		Duration:             req.Duration,
		CustomerPhoneType:    req.CustomerPhoneType,
		CustomerPhysicalType: req.CustomerPhysicalType,
		Gender:               req.Gender,
		Certified:            req.Certified,
		ByAdmin:              req.ByAdmin,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromJob(job))
}

// GetBooking handles GET /api/v1/bookings/:job_id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.engine.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// StoreBookingEmail handles POST /api/v1/bookings/:job_id/email
// Stores contact details on a fresh booking and sends the confirmation mail.
func (h *BookingHandler) StoreBookingEmail(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.UpdateContact(c.Request.Context(), jobID, engine.ContactUpdate{
		UserEmail:    req.UserEmail,
		Reference:    req.Reference,
		Address:      req.Address,
		Instructions: req.Instructions,
		Town:         req.Town,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// AcceptBooking handles POST /api/v1/bookings/:job_id/accept
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.AcceptWithID(c.Request.Context(), jobID, req.TranslatorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// CancelBooking handles POST /api/v1/bookings/:job_id/cancel
// The acting user's role decides the branch: customers withdraw, translators
// trigger recycling.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.Cancel(c.Request.Context(), jobID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// EndBooking handles POST /api/v1/bookings/:job_id/end
func (h *BookingHandler) EndBooking(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.EndJob(c.Request.Context(), jobID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// CustomerNoShow handles POST /api/v1/bookings/:job_id/not-carried-out
func (h *BookingHandler) CustomerNoShow(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.engine.CustomerNoShow(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ReopenBooking handles POST /api/v1/bookings/:job_id/reopen
func (h *BookingHandler) ReopenBooking(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.Reopen(c.Request.Context(), jobID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// UpdateBooking handles PUT /api/v1/bookings/:job_id (admin edit)
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	jobID := c.Param("job_id")
	actorID := c.GetHeader("X-Admin-User")

	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.Update(c.Request.Context(), jobID, actorID, engine.UpdateRequest{
		Due:             req.Due,
		FromLanguageID:  req.FromLanguageID,
		Status:          req.Status,
		AdminComments:   req.AdminComments,
		SessionTime:     req.SessionTime,
		Reference:       req.Reference,
		TranslatorID:    req.TranslatorID,
		TranslatorEmail: req.TranslatorEmail,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// PotentialBookings handles GET /api/v1/bookings/potential?translator_id=...
func (h *BookingHandler) PotentialBookings(c *gin.Context) {
	translatorID := c.Query("translator_id")
	if translatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "translator_id is required",
		})
		return
	}

	jobs, err := h.engine.PotentialJobs(c.Request.Context(), translatorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	bookings := make([]dto.BookingDTO, len(jobs))
	for i := range jobs {
		bookings[i] = dto.FromJob(&jobs[i])
	}

	c.JSON(http.StatusOK, dto.BookingListResponse{Bookings: bookings})
}
