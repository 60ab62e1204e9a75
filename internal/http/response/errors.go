package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/platform/apierr"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

// Status maps edge, pipeline and aggregate errors to an HTTP status and error code.
func Status(err error) (int, string) {
	if status, code, ok := apierr.As(err); ok {
		return status, code
	}
	if kind := training.KindOf(err); kind != "" {
		switch kind {
		case training.KindValidation:
			return http.StatusBadRequest, string(kind)
		case training.KindRunInProgress, training.KindCanceled:
			return http.StatusConflict, string(kind)
		case training.KindTraining:
			return http.StatusBadGateway, string(kind)
		case training.KindStoreUnavailable:
			return http.StatusServiceUnavailable, string(kind)
		case training.KindPartialFailure:
			return http.StatusInternalServerError, string(kind)
		}
	}
	switch code := domainagg.CodeOf(err); code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest, string(code)
	case domainagg.CodeNotFound:
		return http.StatusNotFound, string(code)
	case domainagg.CodeConflict, domainagg.CodePreconditionFailed:
		return http.StatusConflict, string(code)
	case domainagg.CodeRetryable, domainagg.CodeUnavailable:
		return http.StatusServiceUnavailable, string(code)
	case domainagg.CodeInvariantViolation, domainagg.CodeInternal:
		return http.StatusInternalServerError, string(code)
	}
	return http.StatusInternalServerError, "internal"
}

// RespondMappedError writes err with the status from Status. Partial failures
// carry the version and example ids needed to reconcile.
func RespondMappedError(c *gin.Context, err error) {
	status, code := Status(err)
	var te *training.Error
	if errors.As(err, &te) && te.Kind == training.KindPartialFailure {
		c.JSON(status, ErrorEnvelope{Error: APIError{
			Message: err.Error(),
			Code:    code,
			Details: gin.H{"version": te.Version, "example_ids": te.ExampleIDs},
		}})
		return
	}
	RespondError(c, status, code, err)
}
