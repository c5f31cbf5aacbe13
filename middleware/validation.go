package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webramesh/email-marketing-sub000/common"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
)

// Bind decodes the JSON body into dest and validates it. On failure the error is
// attached to the context and false is returned.
func Bind[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid json: %v", err.Error()))
		return false
	}

	if err := dto.Validate(dest); err != nil {
		c.Error(common.FromError(err, "validation failed"))
		return false
	}

	return true
}
