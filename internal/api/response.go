package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fenwick-labs/gatehouse/internal/models"
)

// respondUser writes the success envelope {status, token?, data: {user}}.
// The token key is omitted for responses that do not mint a session.
func respondUser(c *gin.Context, status int, token string, user models.User) {
	payload := gin.H{
		"status": "success",
		"data":   gin.H{"user": user},
	}
	if token != "" {
		payload["token"] = token
	}
	c.JSON(status, payload)
}

// respondMessage writes a success envelope carrying only a message.
func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  "success",
		"message": message,
	})
}

// respondError writes the failure envelope. Client failures read "fail",
// server failures "error", mirroring the operational/unexpected split.
func respondError(c *gin.Context, status int, message string) {
	statusWord := "fail"
	if status >= http.StatusInternalServerError {
		statusWord = "error"
	}
	c.JSON(status, gin.H{
		"status":  statusWord,
		"message": message,
	})
}
