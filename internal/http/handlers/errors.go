package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/http/response"
	"github.com/yungbote/catalog-backend/internal/platform/ctxutil"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

const codeInvalidRequest = "invalid_request"

// StatusFor maps an aggregate error code to its HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodePartialLink:
		return http.StatusBadGateway
	case domainagg.CodeRemoteUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(c *gin.Context, log *logger.Logger, op string, err error) {
	apiErr := response.APIError{Code: string(domainagg.CodeInternal), Message: err.Error()}
	var ae *domainagg.Error
	if errors.As(err, &ae) {
		apiErr.Code = string(ae.Code)
		if msg := strings.TrimSpace(ae.Message); msg != "" {
			apiErr.Message = msg
		}
		apiErr.Ambiguous = ae.Ambiguous
		apiErr.Partial = ae.Partial
	}
	status := StatusFor(domainagg.ErrorCode(apiErr.Code))

	fields := append(ctxutil.LogFields(c.Request.Context()), "op", op, "status", status, "error", err)
	switch {
	case status >= 500:
		log.Error("request failed", fields...)
	case status == http.StatusNotFound:
		log.Debug("request failed", fields...)
	default:
		log.Warn("request failed", fields...)
	}
	response.RespondAPIError(c, status, apiErr)
}

func respondBadRequest(c *gin.Context, err error) {
	response.RespondError(c, http.StatusBadRequest, codeInvalidRequest, err)
}
