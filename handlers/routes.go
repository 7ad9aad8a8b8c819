package handlers

import (
	"humanfinder/config"
	"humanfinder/utils"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// NewRouter creates the gin engine with all end-points registered
func (h *Handlers) NewRouter() *gin.Engine {
	if !config.DEBUG_MODE {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{})
	if config.DEBUG_MODE {
		router.Use(gin.Logger(), utils.ErrorLogMiddleware)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        30 * 24 * time.Hour,
	}))
	if !config.DEBUG_MODE {
		router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/person/photo", "/ws"})))
	}
	router.Use(utils.CacheControl(utils.CacheNoCache)) // No cache by default, individual end-points can override that
	// Person reports
	router.POST("/person/report", h.PersonReport)
	router.GET("/person/list", h.PersonList)
	router.GET("/person/get", h.PersonGet)
	router.GET("/person/photo", h.PersonPhoto)
	// Face matching
	router.POST("/face/check", h.FaceCheck)
	router.POST("/match/run", h.MatchRun)
	router.GET("/models/status", h.ModelsStatus)
	router.GET("/status", h.Status)
	// Notifications
	router.GET("/notification/list", h.NotificationList)
	router.POST("/notification/read", h.NotificationRead)
	router.POST("/notification/clear", h.NotificationClear)
	router.GET("/ws", h.WebSocket)
	return router
}
