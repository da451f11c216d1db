package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/alarm"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/config"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/detection"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/handlers"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/natsserver"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/rules"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/stream"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	defer database.Close()

	// Start embedded NATS server for internal event fan-out
	bus, err := natsserver.New(natsserver.Config{
		Port:       cfg.NATSPort,
		MaxPayload: 8 * 1024 * 1024,
	})
	if err != nil {
		log.Fatalf("❌ Failed to start NATS server: %v", err)
	}
	defer bus.Shutdown()

	// Alarm hub with snapshot and persistence collaborators
	alarms := alarm.NewHub(
		alarm.NewFileSnapshotSaver(cfg.SnapshotsDir),
		alarm.DBRecordStore{},
	)

	// Detection model server client
	detector := detection.NewClient(cfg.DetectorURL, cfg.ConfidenceThreshold)
	log.Printf("🔍 Detector client initialized (url: %s)", cfg.DetectorURL)

	ruleCfg := rules.Config{
		Persistence:    cfg.PersistenceSeconds,
		Cooldown:       cfg.CooldownSeconds,
		FrameWindow:    cfg.FrameWindow,
		FrameThreshold: cfg.FrameThreshold,
	}

	// Stream hub owns the per-camera pipelines and event subscribers
	streamHub, err := stream.NewHub(alarms, bus, detector, handlers.LoadROIConfigs, ruleCfg, cfg.VideoFPS, cfg.VideoQuality)
	if err != nil {
		log.Fatalf("❌ Failed to start stream hub: %v", err)
	}
	defer streamHub.Shutdown()

	handlers.Init(streamHub, alarms, cfg.JWTSecret)
	handlers.SeedAdminUser()

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Serve event snapshots statically
	log.Printf("📁 Serving snapshots from: %s", cfg.SnapshotsDir)
	router.Static("/snapshots", cfg.SnapshotsDir)

	// WebSocket routes (outside /api group)
	router.GET("/ws/stream/:id", handlers.StreamWS)
	router.GET("/ws/events", handlers.EventsWS)

	// API Routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", handlers.Login)

		protected := api.Group("")
		protected.Use(handlers.AuthMiddleware())
		{
			protected.GET("/stats", handlers.GetStats)

			// Camera routes
			cameras := protected.Group("/cameras")
			{
				cameras.GET("", handlers.ListCameras)
				cameras.POST("", handlers.CreateCamera)
				cameras.GET("/:id", handlers.GetCamera)
				cameras.PUT("/:id", handlers.UpdateCamera)
				cameras.DELETE("/:id", handlers.DeleteCamera)
				cameras.GET("/:id/stream-info", handlers.GetStreamInfo)
				cameras.GET("/:id/snapshot", handlers.GetSnapshot)

				// Zone configuration per camera
				cameras.GET("/:id/rois", handlers.ListROIs)
				cameras.POST("/:id/rois", handlers.CreateROI)

				// Checklists per camera
				cameras.GET("/:id/checklists", handlers.ListChecklists)
				cameras.POST("/:id/checklists", handlers.CreateChecklist)
			}

			protected.PUT("/rois/:roiId", handlers.UpdateROI)
			protected.DELETE("/rois/:roiId", handlers.DeleteROI)

			protected.DELETE("/checklists/:checklistId", handlers.DeleteChecklist)
			protected.PUT("/checklist-items/:itemId/check", handlers.CheckItem)

			// Event routes
			events := protected.Group("/events")
			{
				events.GET("", handlers.ListEvents)
				events.GET("/unacknowledged", handlers.ListUnacknowledged)
				events.POST("/:id/acknowledge", handlers.AcknowledgeEvent)
			}

			// Safety regulation reference texts
			regulations := protected.Group("/regulations")
			{
				regulations.GET("", handlers.ListRegulations)
				regulations.GET("/:category", handlers.ListRegulationsByCategory)
			}
		}
	}

	log.Printf("🚀 Server running on http://localhost:%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
