package http

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// RouterConfig agrupa lo que el router necesita además de los handlers.
type RouterConfig struct {
	AllowedOrigins []string
	Tokens         accessTokenParser
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, cfg RouterConfig, authH *AuthHandler, bankH *BankHandler) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(cfg.AllowedOrigins), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	auth.POST("/sign-up", authH.SignUp)
	auth.POST("/sign-in", authH.SignIn)
	auth.POST("/sign-out", authH.SignOut)
	auth.POST("/refresh", authH.Refresh)

	protected := r.Group("")
	protected.Use(JWTAuthMiddleware(cfg.Tokens))
	protected.GET("/me", authH.Me)
	protected.POST("/banks/link-token", bankH.CreateLinkToken)
	protected.POST("/banks", bankH.LinkBank)
	protected.GET("/accounts", bankH.GetAccounts)
	protected.GET("/accounts/:bankLinkId", bankH.GetAccount)
	protected.POST("/transfers", bankH.SendTransfer)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// useJSONFieldNames hace que los errores de binding reporten el nombre JSON del campo.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
