package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultCORSOrigins are the local UI dev servers.
var DefaultCORSOrigins = []string{
	"http://localhost:4200",
	"http://localhost:9000",
	"http://localhost:3000",
	"http://127.0.0.1:4200",
	"http://127.0.0.1:9000",
	"http://127.0.0.1:3000",
}

func CORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = DefaultCORSOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With", "X-Request-Id", "X-Trace-Id"},
		ExposeHeaders:    []string{"Location", "X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
	})
}
