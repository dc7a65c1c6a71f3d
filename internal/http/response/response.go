package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	// Ambiguous marks a write whose remote outcome is unknown; retrying is safe.
	Ambiguous bool                   `json:"ambiguous,omitempty"`
	Partial   *domainagg.PartialLink `json:"partial,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	RespondAPIError(c, status, APIError{Message: msg, Code: code})
}

func RespondAPIError(c *gin.Context, status int, apiErr APIError) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: apiErr})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondCreated sets Location when given and writes 201.
func RespondCreated(c *gin.Context, location string, payload any) {
	if location != "" {
		c.Header("Location", location)
	}
	c.JSON(http.StatusCreated, payload)
}
