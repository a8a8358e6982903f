package middlewares

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftupload/internal/server/chain"
	"github.com/openmined/syftupload/internal/server/handlers/api"
)

const (
	DefaultMaxBodyBytes = 1 << 20

	// ChainValuesKey holds the full merged chain output on the gin context.
	ChainValuesKey = "chain"
)

// Chain runs c for every request. The body is read once, capped at
// maxBodyBytes, handed to the chain as raw bytes and then restored so handlers
// can bind it. Every merged value is also set on the gin context by key.
func Chain(c *chain.Chain, maxBodyBytes int64) gin.HandlerFunc {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	return func(ctx *gin.Context) {
		body, err := readBody(ctx, maxBodyBytes)
		if err != nil {
			api.Abort(ctx, err)
			return
		}

		mc := &chain.Context{
			Method:   ctx.Request.Method,
			Path:     ctx.Request.URL.Path,
			Headers:  ctx.Request.Header,
			Request:  ctx.Request,
			Body:     body,
			ClientIP: ctx.ClientIP(),
		}

		values, err := c.Execute(ctx.Request.Context(), mc)
		if err != nil {
			api.Abort(ctx, err)
			return
		}

		for key, value := range values {
			ctx.Set(key, value)
		}
		ctx.Set(ChainValuesKey, values)
		ctx.Next()
	}
}

func readBody(ctx *gin.Context, limit int64) ([]byte, error) {
	if ctx.Request.Body == nil || ctx.Request.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, api.Errorf(api.CodeInvalidRequest, "request body exceeds %d bytes", limit)
		}
		return nil, api.Errorf(api.CodeInvalidRequest, "failed to read request body: %v", err)
	}

	ctx.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
