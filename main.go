// main.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dexavision/admin-console/config"
	"github.com/dexavision/admin-console/endpoint"
	"github.com/dexavision/admin-console/identity"
	"github.com/dexavision/admin-console/middleware"
	"github.com/dexavision/admin-console/model"
	"github.com/dexavision/admin-console/pagination"
	"github.com/dexavision/admin-console/profile"
	"github.com/dexavision/admin-console/session"
	"github.com/dexavision/admin-console/upstream"
	"github.com/dexavision/admin-console/util"
)

func main() {
	// Load the configuration
	cfg := config.LoadConfig()

	db, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	db.AutoMigrate(&model.SecurityLog{})
	util.SetSecurityLoggerDB(db)

	config.ConnectRedis()

	if err := util.InitGeoIP(os.Getenv("GEOIP_DB_PATH")); err != nil {
		log.Printf("geoip: disabled: %v", err)
	}
	defer util.CloseGeoIP()

	util.SetSessionSecret(cfg.SessionSecret)

	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	idp := identity.NewClient(cfg.IDPAPIKey, cfg.IDPSignInURL, cfg.IDPTokenURL)
	up := upstream.New(cfg.ServerURL)
	sessions := session.NewManager(idp, sessionTTL)
	profiles := profile.NewLoader(up, sessionTTL)
	grids := pagination.NewRegistry(sessionTTL)
	guards := middleware.GuardDeps{Sessions: sessions, Profiles: profiles, Grids: grids}

	h := endpoint.NewHandler(idp, sessions, profiles, grids, up)

	// Set Gin mode from config
	gin.SetMode(cfg.GinMode)

	// Create a Gin router with default middleware
	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DatabaseMiddleware(db))
	router.Use(middleware.SessionResolver(sessions))
	router.Use(middleware.EndpointCallLogger())

	router.GET("/", h.Root)

	auth := router.Group("/auth")
	{
		auth.POST("/login", middleware.RateLimiter(middleware.RateLimitConfig{}), middleware.RequireGuest(), h.Login)
		auth.POST("/google", middleware.RateLimiter(middleware.RateLimitConfig{}), middleware.RequireGuest(), h.LoginWithGoogle)
		auth.DELETE("/logout", h.Logout)
		auth.GET("/session", h.ValidateSession)
	}

	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/profile", middleware.RequireAuth(), h.GetProfile)
		dashboard.POST("/profile/refresh", middleware.RequireAuth(), h.RefreshProfile)

		admin := dashboard.Group("", middleware.RequireAdmin(guards))
		{
			admin.GET("/verificaciones", h.ListVerifications)
			admin.GET("/verificaciones/:userId", h.GetVerificationDetail)
			admin.PUT("/verificaciones/:userId/review", h.SubmitReview)
		}
	}

	// Bearer-token relays for API clients that hold their own provider token.
	api := router.Group("/api")
	{
		api.Any("/profile", h.RelayProfile)
		api.Any("/admin/doctors", h.RelayDoctors)
		api.Any("/admin/doctors/:userId", h.RelayDoctorDetail)
		api.Any("/admin/doctors/:userId/review", h.RelayReview)
	}

	// Start server on specified port
	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
