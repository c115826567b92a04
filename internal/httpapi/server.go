package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter assembles the gin engine: CORS, request ids, logging, auth, and
// the route table with its capability guards.
func NewRouter(h *Handler, jwtSecret, env string, logger *zap.Logger) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(RequestID())
	r.Use(Logger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api", Auth(jwtSecret))

	student := api.Group("", RequireStudent())
	{
		student.POST("/requests", h.CreateRequest)
		student.GET("/requests/mine", h.MyRequests)
		student.POST("/requests/:id/cancel", h.CancelRequest)
		student.GET("/subscriptions/mine", h.MySubscriptions)
	}

	operator := api.Group("", RequireOperator())
	{
		operator.GET("/routes/:route_id/requests", h.ReviewQueue)
		operator.POST("/requests/:id/approve", h.Approve)
		operator.POST("/requests/:id/reject", h.Reject)
		operator.POST("/requests/:id/waitlist", h.Waitlist)
		operator.POST("/requests/bulk-approve", h.BulkApprove)
		operator.GET("/buses/:id/seatmap", h.SeatMap)
	}

	// Both roles: students check availability before requesting, operators
	// while reviewing. Subscription cancellation checks ownership in the
	// service.
	api.POST("/subscriptions/:id/cancel", h.CancelSubscription)
	api.GET("/routes/:route_id/availability", h.RouteAvailability)
	api.GET("/buses/:id/occupancy", h.BusOccupancy)
	api.GET("/buses/:id/seats/:label", h.SeatAvailability)

	return r
}
