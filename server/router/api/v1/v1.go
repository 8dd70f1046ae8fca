package v1

import (
	"context"
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/tastevec/internal/profile"
	"github.com/hrygo/tastevec/server/internal/observability"
	"github.com/hrygo/tastevec/server/middleware"
	"github.com/hrygo/tastevec/server/service/recommend"
	"github.com/hrygo/tastevec/server/service/taste"
	"github.com/hrygo/tastevec/store"
)

const headerRequestID = "X-Request-Id"

// Recommender serves recommendation lists. *recommend.Retriever satisfies it.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID int32, limit int) ([]*recommend.ContentSummary, error)
}

// FeedbackSubmitter accepts feedback for background processing.
// *taste.Dispatcher satisfies it.
type FeedbackSubmitter interface {
	Submit(ctx context.Context, event taste.FeedbackEvent) error
}

type APIV1Service struct {
	Profile     *profile.Profile
	Store       *store.Store
	Recommender Recommender
	Feedback    FeedbackSubmitter

	rateLimiter *middleware.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, recommender Recommender, feedback FeedbackSubmitter) *APIV1Service {
	return &APIV1Service{
		Profile:     profile,
		Store:       store,
		Recommender: recommender,
		Feedback:    feedback,
		rateLimiter: middleware.NewRateLimiter(),
	}
}

// RateLimiter returns the per-client limiter guarding the API routes.
func (s *APIV1Service) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// RegisterRoutes registers the v1 API with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	group := echoServer.Group("/api/v1", middleware.RateLimit(s.rateLimiter))
	group.POST("/users/:id/feedback", s.PostFeedback)
	group.GET("/users/:id/recommendations", s.GetRecommendations)
}

// requestContext starts a RequestContext for the handler and echoes its id
// back to the client.
func requestContext(c echo.Context, operation string, userID int32) (context.Context, *observability.RequestContext) {
	reqCtx := observability.NewRequestContextWithID(nil, c.Request().Header.Get(headerRequestID), operation, userID)
	c.Response().Header().Set(headerRequestID, reqCtx.RequestID)
	return observability.WithRequestContext(c.Request().Context(), reqCtx), reqCtx
}

func parseUserID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid user id")
	}
	return int32(id), nil
}
