package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/engine"
	"github.com/nordtolk/booking-be/shared/postgresql"
	"github.com/nordtolk/booking-be/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Engine       *engine.Engine
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
}

// BookingHandler handles booking-related HTTP requests
type BookingHandler struct {
	logger *slog.Logger
	engine *engine.Engine
}

// NewBookingHandler creates a new BookingHandler instance
func NewBookingHandler(deps *Dependencies) *BookingHandler {
	return &BookingHandler{
		logger: deps.Logger,
		engine: deps.Engine,
	}
}

// respondError maps domain errors to HTTP status codes. Validation failures
// carry the offending field so clients can highlight the form input.
func (h *BookingHandler) respondError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status":     "fail",
			"message":    verr.Msg,
			"field_name": verr.Field,
		})
	case domain.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{
			"status":  "fail",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrCancellationTooLate):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status":  "fail",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "fail",
			"message": err.Error(),
		})
	default:
		h.logger.Error("Request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "internal server error",
		})
	}
}
