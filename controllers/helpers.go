package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-api/models"
	"messenger-api/services"
	"messenger-api/utils"
)

// currentUser 从上下文取出认证中间件放入的用户
func currentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		utils.RespondError(c, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	user, ok := v.(*models.User)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return user, true
}

// respondServiceError 按服务层错误映射状态码
func respondServiceError(c *gin.Context, err error) {
	utils.RespondError(c, services.HTTPStatusFromError(err), err.Error())
}
