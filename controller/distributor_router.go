package controller

import (
	"time"

	"digital-will/controller/handler"
	"digital-will/controller/respond"
	distributorDocs "digital-will/docs/distributor"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupDistributorRouter setup the read-only ops API
func SetupDistributorRouter(h *handler.DistributionQueryHandler, swaggerHost string) *gin.Engine {
	distributorDocs.SwaggerInfodistributor.Host = swaggerHost

	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))

	r.Use(respond.TimingMiddleware())

	v1 := r.Group("/api/v1")
	{
		assets := v1.Group("/assets")
		{
			assets.GET("/due", h.ListDueAssets)
			assets.GET("/:id", h.GetAsset)
			assets.GET("/:id/attempts", h.ListAttempts)
			assets.GET("/:id/receipt", h.GetReceipt)
		}

		v1.GET("/schedulers", h.ListSchedulers)
	}

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.InstanceName("distributor")))

	// Health check
	r.GET("/health", h.Health)

	return r
}
