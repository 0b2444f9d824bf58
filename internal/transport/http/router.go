package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ledgerbook/identity/internal/transport/http/handler"
	"github.com/ledgerbook/identity/internal/transport/http/middleware"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	businessHandler *handler.BusinessHandler,
	importHandler *handler.ImportHandler,
	jwtSecret []byte,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	// Magic link flow is public; issuance is rate limited per
	// email and redemption is single use.
	r.POST("/auth/send-magic-link", authHandler.SendMagicLink)
	r.GET("/auth/verify", authHandler.Verify)

	authMW := middleware.Auth(jwtSecret)

	me := r.Group("/me", authMW)
	me.GET("", businessHandler.Me)

	businesses := r.Group("/businesses", authMW)
	businesses.POST("", businessHandler.Create)

	transactions := r.Group("/transactions", authMW)
	transactions.POST("/import", importHandler.Import)

	return r
}
