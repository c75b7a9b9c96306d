package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/chat-server/config"
	"github.com/vnkhanh/chat-server/models"
	"github.com/vnkhanh/chat-server/utils"
)

// CtxMember is the gin context key the authenticated member is stored under.
const CtxMember = "ctxMember"

// AuthJWT checks Authorization: Bearer <token> (or ?token= for the websocket
// attach, where browsers cannot set headers), validates it, loads the member
// and injects it into the context.
func AuthJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken := ""
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			rawToken = strings.TrimSpace(authHeader[7:])
		} else {
			rawToken = c.Query("token")
		}
		if rawToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing or invalid Authorization header"})
			return
		}

		claims, err := utils.VerifyToken(rawToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}

		// MemberID claim is a string; parse to look up the primary key.
		mid, err := strconv.ParseUint(claims.MemberID, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid subject"})
			return
		}

		var member models.Member
		if err := config.DB.First(&member, mid).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Member not found"})
			return
		}

		c.Set(CtxMember, member)
		c.Next()
	}
}
