package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"github.com/gin-gonic/gin"
)

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)

		var user models.User
		cached, err := config.GetRedisObject("User:"+username, &user)
		if err == nil && !cached {
			if found, dbErr := models.GetUserByUsername(ctx, username); dbErr == nil {
				user = *found
				cached = true
			}
		}
		if cached {
			ctx = utils.SetUserIdInContext(ctx, user.ID)
			ctx = utils.SetUserNameInContext(ctx, user.Name)
			ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
