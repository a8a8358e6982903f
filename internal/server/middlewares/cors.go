package middlewares

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openmined/syftupload/internal/signing"
)

// CORS lets browser clients call the control plane with the signing headers.
// ETag is exposed so browsers can read it from part PUT responses when
// storage shares the origin.
func CORS(allowOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Authorization",
			signing.HeaderSignature, signing.HeaderTimestamp, signing.HeaderNonce,
			HeaderClientID,
		},
		ExposeHeaders:    []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(allowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowOrigins
	}

	return cors.New(cfg)
}
