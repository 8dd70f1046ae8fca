package v1

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/tastevec/server/internal/errors"
	"github.com/hrygo/tastevec/server/internal/observability"
	"github.com/hrygo/tastevec/server/service/recommend"
)

// toAPIError maps service errors to API errors.
func toAPIError(err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	var indexErr *recommend.IndexError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, recommend.ErrUserNotFound):
		return apierrors.Wrap(err, apierrors.ErrCodeNotFound, "user not found")
	case errors.Is(err, recommend.ErrIndexUnavailable):
		return apierrors.Wrap(err, apierrors.ErrCodeIndexUnavailable, "content index unavailable")
	case errors.As(err, &indexErr):
		return apierrors.Wrap(err, apierrors.ErrCodeIndexError, "content index query failed")
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.Timeout(err, "request timed out")
	case errors.Is(err, context.Canceled):
		return apierrors.Wrap(err, apierrors.ErrCodeContextCanceled, "request canceled")
	default:
		return apierrors.Wrap(err, apierrors.ErrCodeInternal, "internal error")
	}
}

func writeError(c echo.Context, reqCtx *observability.RequestContext, err error) error {
	apiErr := toAPIError(err)
	status := apiErr.HTTPStatus()
	if status >= 500 {
		reqCtx.Error("request failed", err, slog.String(observability.LogFieldErrorCode, string(apiErr.Code)))
	} else {
		reqCtx.Debug("request rejected", slog.String(observability.LogFieldErrorCode, string(apiErr.Code)))
	}
	return c.JSON(status, apiErr)
}
