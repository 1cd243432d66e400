package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nordtolk/booking-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint: verifies database and broker connectivity
	r.GET("/health", func(c *gin.Context) {
		if deps.DBClient != nil {
			if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "booking-api-service",
					"reason":  "database unreachable",
				})
				return
			}
		}
		if deps.RabbitClient != nil && !deps.RabbitClient.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "booking-api-service",
				"reason":  "message broker disconnected",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "booking-api-service",
		})
	})

	bookingHandler := handler.NewBookingHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		{
			// POST /api/v1/bookings - Create a new booking
			bookings.POST("", bookingHandler.CreateBooking)

			// GET /api/v1/bookings/potential - Pending bookings a translator can take
			bookings.GET("/potential", bookingHandler.PotentialBookings)

			// GET /api/v1/bookings/:job_id - Get booking details
			bookings.GET("/:job_id", bookingHandler.GetBooking)

			// PUT /api/v1/bookings/:job_id - Admin edit of a booking
			bookings.PUT("/:job_id", bookingHandler.UpdateBooking)

			// POST /api/v1/bookings/:job_id/email - Store contact details
			bookings.POST("/:job_id/email", bookingHandler.StoreBookingEmail)

			// POST /api/v1/bookings/:job_id/accept - Translator claims the booking
			bookings.POST("/:job_id/accept", bookingHandler.AcceptBooking)

			// POST /api/v1/bookings/:job_id/cancel - Customer or translator cancel
			bookings.POST("/:job_id/cancel", bookingHandler.CancelBooking)

			// POST /api/v1/bookings/:job_id/end - Complete a started session
			bookings.POST("/:job_id/end", bookingHandler.EndBooking)

			// POST /api/v1/bookings/:job_id/not-carried-out - Customer no-show
			bookings.POST("/:job_id/not-carried-out", bookingHandler.CustomerNoShow)

			// POST /api/v1/bookings/:job_id/reopen - Put a closed booking back on the market
			bookings.POST("/:job_id/reopen", bookingHandler.ReopenBooking)
		}
	}

	return r
}
