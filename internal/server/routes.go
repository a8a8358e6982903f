package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftupload/internal/server/chain"
	"github.com/openmined/syftupload/internal/server/handlers/blob"
	"github.com/openmined/syftupload/internal/server/handlers/multipart"
	"github.com/openmined/syftupload/internal/server/middlewares"
	"github.com/openmined/syftupload/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	mc, err := newMiddlewareChain(config, svc)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	mpH := multipart.New(svc.Blob, &config.Multipart)
	blobH := blob.New(svc.Blob)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS(config.HTTP.AllowOrigins))
	if config.HTTP.CertFile != "" {
		r.Use(middlewares.HSTS())
	}
	r.Use(middlewares.Chain(mc, config.HTTP.MaxBodyBytes))

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	mp := r.Group("/multipart")
	{
		mp.POST("/create", mpH.Create)
		mp.POST("/presign-parts", mpH.PresignParts)
		mp.POST("/complete", mpH.Complete)
		mp.POST("/abort", mpH.Abort)
	}

	b := r.Group("/blob")
	{
		b.POST("/presign-upload", blobH.PresignUpload)
		b.POST("/presign-download", blobH.PresignDownload)
		b.POST("/exists", blobH.Exists)
		b.POST("/delete", blobH.Delete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler(), nil
}

// newMiddlewareChain orders the control-plane middlewares. Signature
// verification runs first so the rate limiter can key on the verified user.
// With signing disabled, bearer auth takes its place.
func newMiddlewareChain(config *Config, svc *Services) (*chain.Chain, error) {
	mc := chain.NewChain()

	if svc.Signer != nil {
		sigCfg := middlewares.SignatureConfig{
			Signer: svc.Signer,
			Nonces: svc.Nonces,
		}
		if svc.Auth.IsEnabled() {
			sigCfg.AuthHook = middlewares.BearerAuth(svc.Auth)
		}
		sig, err := middlewares.Signature(sigCfg)
		if err != nil {
			return nil, err
		}
		mc.Use(sig)
	} else if svc.Auth.IsEnabled() {
		am, err := middlewares.Auth(svc.Auth, nil)
		if err != nil {
			return nil, err
		}
		mc.Use(am)
	}

	if config.RateLimit.Enabled {
		rl, err := middlewares.RateLimit(config.RateLimit.Rate, config.RateLimit.SkipPaths)
		if err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		mc.Use(rl)
	}

	return mc, nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
