package monitor

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// RegisterLogsRoute exposes the application log file to admins. guards run
// before the handler.
func RegisterLogsRoute(router gin.IRouter, logPath string, guards ...gin.HandlerFunc) {
	handlers := append(guards, func(c *gin.Context) {
		logData, err := os.ReadFile(logPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", logData)
	})
	router.GET("/logs", handlers...)
}
