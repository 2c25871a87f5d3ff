package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"qahwa-pos/config"
	"qahwa-pos/internal/database"
	"qahwa-pos/internal/handlers"
	"qahwa-pos/internal/middleware"
	"qahwa-pos/internal/pos"
	"qahwa-pos/internal/utils"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Auth.JWTSecret != "" {
		utils.JwtSecret = []byte(cfg.Auth.JWTSecret)
	}

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	redisClient, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, catalog caching disabled", zap.Error(err))
		redisClient = nil
	}

	storage := pos.NewGormStorage(db)
	service := pos.NewService(storage, logger)

	authHandler := handlers.NewAuthHandler(db, logger)
	posHandler := handlers.NewPOSHandler(service, redisClient, logger)
	catalogHandler := handlers.NewCatalogHandler(db, redisClient, logger)
	reportsHandler := handlers.NewReportsHandler(service, logger)

	r := gin.New()
	r.Use(middleware.CORS(cfg.Server.AllowOrigins))
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	middleware.InitMetrics()
	r.Use(middleware.PrometheusMiddleware())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	public := r.Group("/api/v1")
	public.Use(middleware.RateLimit(cfg.Server.RateLimit))
	{
		auth := public.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}
	}

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		sales := protected.Group("/sales")
		{
			sales.POST("", posHandler.CreateSale)
			sales.GET("", posHandler.ListSales)
			sales.GET("/:id", posHandler.GetSale)
		}

		shifts := protected.Group("/shifts")
		{
			shifts.POST("", posHandler.OpenShift)
			shifts.POST("/:id/end", posHandler.CloseShift)
			shifts.GET("/:id/summary", reportsHandler.ShiftSummary)
		}

		protected.GET("/seller/dashboard", posHandler.Dashboard)

		products := protected.Group("/products")
		{
			products.GET("", catalogHandler.ListProducts)
			products.GET("/:id", catalogHandler.GetProduct)

			productAdmin := products.Group("", middleware.RequireRole("admin"))
			{
				productAdmin.POST("", catalogHandler.CreateProduct)
				productAdmin.PUT("/:id", catalogHandler.UpdateProduct)
				productAdmin.DELETE("/:id", catalogHandler.DeleteProduct)
				productAdmin.PATCH("/:id/stock", catalogHandler.SetStock)
			}
		}

		categories := protected.Group("/categories")
		{
			categories.GET("", catalogHandler.ListCategories)

			categoryAdmin := categories.Group("", middleware.RequireRole("admin"))
			{
				categoryAdmin.POST("", catalogHandler.CreateCategory)
				categoryAdmin.PUT("/:id", catalogHandler.UpdateCategory)
				categoryAdmin.DELETE("/:id", catalogHandler.DeleteCategory)
			}
		}

		admin := protected.Group("/admin", middleware.RequireRole("admin"))
		{
			admin.GET("/users", authHandler.ListUsers)
			admin.POST("/users", authHandler.CreateUser)
			admin.GET("/reports/sales", reportsHandler.Sales)
		}

		reports := protected.Group("/reports", middleware.RequireRole("admin", "seller"))
		{
			reports.GET("/daily", reportsHandler.Daily)
			reports.GET("/top-products", reportsHandler.TopProducts)
		}
	}

	logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
