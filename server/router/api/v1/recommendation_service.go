package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/tastevec/plugin/ai/timeout"
	apierrors "github.com/hrygo/tastevec/server/internal/errors"
	"github.com/hrygo/tastevec/server/internal/observability"
	"github.com/hrygo/tastevec/server/service/recommend"
)

// RecommendationsResponse is the body of a recommendation list.
type RecommendationsResponse struct {
	Items []*recommend.ContentSummary `json:"items"`
}

// GetRecommendations returns recommendations for a user.
// GET /api/v1/users/:id/recommendations?limit=N
func (s *APIV1Service) GetRecommendations(c echo.Context) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.InvalidArgument("invalid user id"))
	}
	ctx, reqCtx := requestContext(c, "recommend", userID)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return writeError(c, reqCtx, apierrors.InvalidArgument("limit must be an integer"))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.recommendationTimeout())
	defer cancel()

	items, err := s.Recommender.GetRecommendations(ctx, userID, limit)
	if err != nil {
		return writeError(c, reqCtx, err)
	}

	reqCtx.Debug("recommendations served",
		slog.Int("count", len(items)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
	)
	return c.JSON(http.StatusOK, RecommendationsResponse{Items: items})
}

func (s *APIV1Service) recommendationTimeout() time.Duration {
	if s.Profile != nil && s.Profile.RecommendationTimeout > 0 {
		return s.Profile.RecommendationTimeout
	}
	return timeout.RecommendationTimeout
}
