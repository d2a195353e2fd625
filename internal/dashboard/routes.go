package dashboard

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	// Embedded static assets (served from assets/ subdir of the embed.FS).
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	// Pages.
	router.GET("/", handleIndex(db))
	router.GET("/conversations", handleConversationList(db))
	router.GET("/conversations/:id", handleConversationDetail(db))
	router.GET("/appointments", handleAppointments(db))

	// SSE stream of new messages.
	router.GET("/api/events", handleSSE(db))
}

func handleIndex(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, _ := ConversationSummary(db)
		appts, _ := UpcomingAppointments(db, 5)
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":          "overview",
			"conversations": convs,
			"appointments":  appts,
		})
	}
}

func handleConversationList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, _ := ConversationSummary(db)
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":          "conversations",
			"conversations": convs,
		})
	}
}

func handleConversationDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := GetConversationDetail(db, c.Param("id"))
		if err != nil {
			c.HTML(http.StatusNotFound, "layout.html", gin.H{
				"page":  "not-found",
				"error": "conversation not found",
			})
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":         "conversation-detail",
			"conversation": detail,
		})
	}
}

func handleAppointments(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		appts, _ := UpcomingAppointments(db, 50)
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":         "appointments",
			"appointments": appts,
		})
	}
}
