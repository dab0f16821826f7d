package httpserver

import (
	"errors"
	"time"

	"dronefood-storefront/internal/client/orderapi"
	"dronefood-storefront/internal/domain"
	"dronefood-storefront/internal/repository/cartstore"
	"dronefood-storefront/internal/tracking"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type tokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

// Deps holds the collaborators the routes need.
type Deps struct {
	Carts        cartstore.Repository
	CartDebounce time.Duration
	Verifier     tokenVerifier
	Orders       orderapi.Client
	Routes       tracking.RouteSource
	Tracking     tracking.Options
	PollInterval time.Duration
	PollDeadline time.Duration
	CORSOrigins  []string
}

func (d Deps) validate() error {
	switch {
	case d.Carts == nil:
		return errors.New("cart store is required")
	case d.Verifier == nil:
		return errors.New("token verifier is required")
	case d.Orders == nil:
		return errors.New("order api client is required")
	case d.Routes == nil:
		return errors.New("routing client is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps, sessions *sessionRegistry) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger.Named("http")).Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api", sessionMiddleware(sessions, deps.Verifier, logger))

	carts := api.Group("/cart")
	carts.GET("", getCartHandler())
	carts.DELETE("", clearCartHandler())
	carts.POST("/items", addItemHandler())
	carts.POST("/conflict", resolveConflictHandler())
	carts.PUT("/items/:itemId", setQuantityHandler())
	carts.DELETE("/items/:itemId", removeItemHandler())

	orders := api.Group("/orders/:id", requireIdentity())
	orders.GET("/tracking/ws", trackingSocketHandler(deps, sessions, logger))
	orders.GET("/payment-result", paymentResultHandler(deps.Orders, deps.PollInterval, deps.PollDeadline, logger))

	return router, nil
}
