// internal/app/router.go
package app

import (
	apikeyHandler "pressroom-service/internal/handlers/apikey"
	auditHandler "pressroom-service/internal/handlers/audit"
	authHandler "pressroom-service/internal/handlers/auth"
	contentHandler "pressroom-service/internal/handlers/content"
	geoHandler "pressroom-service/internal/handlers/geo"
	prefHandler "pressroom-service/internal/handlers/preferences"
	wsHandler "pressroom-service/internal/handlers/websocket"
	"pressroom-service/internal/middleware"
	"pressroom-service/internal/pkg/authz"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler      *authHandler.AuthHandler
	ContentHandler   *contentHandler.ContentHandler
	GeoHandler       *geoHandler.GeoHandler
	PrefHandler      *prefHandler.PreferencesHandler
	APIKeyHandler    *apikeyHandler.APIKeyHandler
	AuditHandler     *auditHandler.AuditHandler
	WSHandler        *wsHandler.WebSocketHandler
	AuthMiddleware   *middleware.AuthMiddleware
	APIKeyMiddleware *middleware.APIKeyMiddleware
}

var editorialRoles = []string{authz.RoleAdmin, authz.RoleEditor, authz.RoleJournalist, authz.RolePublisher}
var publishingRoles = []string{authz.RoleAdmin, authz.RoleEditor, authz.RolePublisher}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	// ==================== OTP Challenge Routes ====================
	// Gated by the temporary token issued at login, not a full session.
	authPending := api.Group("/auth/otp")
	authPending.Use(h.AuthMiddleware.OTPPending())
	{
		authPending.POST("/verify", h.AuthHandler.VerifyOTP)
		authPending.POST("/resend", h.AuthHandler.ResendOTP)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
		authProtected.GET("/me", h.AuthHandler.GetMe)
		authProtected.PUT("/site", h.AuthHandler.SelectSite)
		authProtected.GET("/sessions", h.AuthHandler.GetActiveSessions)
		authProtected.DELETE("/sessions/:session_id", h.AuthHandler.RevokeSession)
	}

	// ==================== Per-Site Editorial Surfaces ====================
	sites := api.Group("/sites/:site")
	sites.Use(h.AuthMiddleware.Auth())
	{
		articles := sites.Group("/articles")
		articles.Use(h.AuthMiddleware.RequireAccess(editorialRoles, "view_article"))
		{
			articles.GET("", h.ContentHandler.ListArticles)
			articles.GET("/:id", h.ContentHandler.GetArticle)
		}

		categories := sites.Group("/categories")
		categories.Use(h.AuthMiddleware.RequireAccess(editorialRoles, "view_category"))
		{
			categories.GET("", h.ContentHandler.ListCategories)
			categories.GET("/:id", h.ContentHandler.GetCategory)
		}

		banners := sites.Group("/banners")
		banners.Use(h.AuthMiddleware.RequireAccess(publishingRoles, "view_banner"))
		{
			banners.GET("", h.ContentHandler.ListBanners)
			banners.GET("/:id", h.ContentHandler.GetBanner)
		}

		notifications := sites.Group("/notifications")
		notifications.Use(h.AuthMiddleware.RequireAccess(publishingRoles, "view_notification"))
		{
			notifications.GET("", h.ContentHandler.ListNotifications)
			notifications.GET("/:id", h.ContentHandler.GetNotification)
		}
	}

	// ==================== Geographic Reference Data ====================
	geo := api.Group("/geo")
	geo.Use(h.AuthMiddleware.Auth())
	{
		geo.GET("/regions", h.GeoHandler.GetRegions)
		geo.GET("/regions/:region/provinces", h.GeoHandler.GetProvinces)
	}

	// ==================== User Preferences ====================
	prefs := api.Group("/preferences")
	prefs.Use(h.AuthMiddleware.Auth())
	{
		prefs.GET("/article-filters", h.PrefHandler.GetArticleFilters)
		prefs.PUT("/article-filters", h.PrefHandler.SaveArticleFilters)
		prefs.GET("/theme", h.PrefHandler.GetTheme)
		prefs.PUT("/theme", h.PrefHandler.SaveTheme)
	}

	// ==================== Machine (API Key) Routes ====================
	// Automation clients authenticate with X-Api-Key instead of a session.
	machine := api.Group("/machine")
	machine.Use(h.APIKeyMiddleware.MachineAuth())
	{
		machine.GET("/whoami", h.APIKeyHandler.WhoAmI)
		machine.GET("/geo/regions", h.GeoHandler.GetRegions)
		machine.GET("/geo/regions/:region/provinces", h.GeoHandler.GetProvinces)
	}

	// ==================== ADMIN ROUTES ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.POST("/apikeys", h.APIKeyHandler.Create)
		admin.GET("/apikeys", h.APIKeyHandler.List)
		admin.DELETE("/apikeys/:id", h.APIKeyHandler.Revoke)

		admin.GET("/audit", h.AuditHandler.ListRecent)
		admin.GET("/audit/users/:user_id", h.AuditHandler.ListForActor)

		admin.POST("/geo/refresh", h.GeoHandler.Refresh)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
