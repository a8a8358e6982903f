package api

import "github.com/gin-gonic/gin"

// AbortWithError aborts the request with a typed error body.
func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, Error{
		Code:    code,
		Message: err.Error(),
	})
}

// Abort renders err with the status of its code. Untyped errors are served as
// INTERNAL_SERVER_ERROR.
func Abort(ctx *gin.Context, err error) {
	apiErr := AsError(err)
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(apiErr.Status(), apiErr)
}
