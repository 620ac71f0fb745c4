package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medicare-backend/internal/shared/server/middleware"
	"medicare-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint the client uses to confirm its token.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{"userId": userID}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	respond.JSON(c, http.StatusOK, response)
}
