package devapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// parseID reads the :id path parameter and answers 400 when it is not a positive integer.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "id inválido")
		return 0, false
	}
	return id, true
}

func currentUser(c *gin.Context) User {
	v, _ := c.Get(ctxUser)
	u, _ := v.(User)
	return u
}

func currentClaims(c *gin.Context) *Claims {
	v, _ := c.Get(ctxClaims)
	claims, _ := v.(*Claims)
	return claims
}
