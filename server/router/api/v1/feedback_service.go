package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/tastevec/server/internal/errors"
	"github.com/hrygo/tastevec/server/service/taste"
	"github.com/hrygo/tastevec/store"
)

// FeedbackRequest is the body of POST /api/v1/users/:id/feedback.
// Kind selects a preset weight and is recorded as an interaction;
// Weight overrides the preset.
type FeedbackRequest struct {
	ContentID int32    `json:"content_id"`
	Kind      string   `json:"kind,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
}

// FeedbackResponse acknowledges an accepted feedback event.
type FeedbackResponse struct {
	UserID    int32   `json:"user_id"`
	ContentID int32   `json:"content_id"`
	Weight    float32 `json:"weight"`
}

// PostFeedback records feedback and schedules the taste vector update.
// POST /api/v1/users/:id/feedback
func (s *APIV1Service) PostFeedback(c echo.Context) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.InvalidArgument("invalid user id"))
	}
	ctx, reqCtx := requestContext(c, "feedback", userID)

	var request FeedbackRequest
	if err := c.Bind(&request); err != nil {
		return writeError(c, reqCtx, apierrors.InvalidArgument("invalid request body"))
	}
	if request.ContentID <= 0 {
		return writeError(c, reqCtx, apierrors.InvalidArgument("content_id is required"))
	}

	var weight taste.Weight
	kind := store.InteractionKind(request.Kind)
	switch {
	case request.Weight != nil:
		if weight, err = taste.ParseWeight(*request.Weight); err != nil {
			return writeError(c, reqCtx, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, err.Error()))
		}
		if kind != "" {
			if _, err := taste.WeightForKind(kind); err != nil {
				return writeError(c, reqCtx, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, err.Error()))
			}
		}
	case kind != "":
		if weight, err = taste.WeightForKind(kind); err != nil {
			return writeError(c, reqCtx, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, err.Error()))
		}
	default:
		return writeError(c, reqCtx, apierrors.InvalidArgument("either kind or weight is required"))
	}

	user, err := s.Store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return writeError(c, reqCtx, err)
	}
	if user == nil {
		return writeError(c, reqCtx, apierrors.NotFound("user not found"))
	}
	content, err := s.Store.GetContent(ctx, &store.FindContent{ID: &request.ContentID})
	if err != nil {
		return writeError(c, reqCtx, err)
	}
	if content == nil {
		return writeError(c, reqCtx, apierrors.NotFound("content not found"))
	}

	if kind != "" {
		if _, err := s.Store.UpsertInteraction(ctx, &store.Interaction{
			UserID:    userID,
			ContentID: content.ID,
			Kind:      kind,
		}); err != nil {
			return writeError(c, reqCtx, err)
		}
	}

	event := taste.FeedbackEvent{UserID: userID, ContentID: content.ID, Weight: weight}
	if err := s.Feedback.Submit(ctx, event); err != nil {
		if errors.Is(err, taste.ErrDispatcherClosed) {
			return writeError(c, reqCtx, apierrors.ServiceUnavailable("server is shutting down"))
		}
		return writeError(c, reqCtx, err)
	}

	return c.JSON(http.StatusAccepted, FeedbackResponse{
		UserID:    userID,
		ContentID: content.ID,
		Weight:    float32(weight),
	})
}
