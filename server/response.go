package server

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/pingstream/errors"
)

// RespondWithError aborts the gin chain with err rendered as an AppError.
// Errors that are not AppErrors become an opaque 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
