package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"messenger-api/services"
	"messenger-api/utils"
)

type UserController struct {
	store    *services.Store
	tokens   *services.TokenManager
	presence *services.PresenceRegistry
}

func NewUserController(store *services.Store, tokens *services.TokenManager, presence *services.PresenceRegistry) *UserController {
	return &UserController{store: store, tokens: tokens, presence: presence}
}

// Register 用户注册
func (uc *UserController) Register(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Image    string `json:"image"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), 12)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user, err := uc.store.CreateUser(input.Name, input.Email, input.Image, string(hashed))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	token, err := uc.tokens.GenerateToken(user)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	utils.RespondSuccess(c, gin.H{"token": token, "user": user}, nil)
}

// Login 用户登录
func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := uc.store.FindUserByEmail(input.Email)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, services.ErrInvalidCredentials.Error())
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(input.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, services.ErrInvalidCredentials.Error())
		return
	}

	token, err := uc.tokens.GenerateToken(user)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	utils.RespondSuccess(c, gin.H{"token": token, "user": user}, nil)
}

// GetUserInfo 当前用户信息
func (uc *UserController) GetUserInfo(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.RespondSuccess(c, user, nil)
}

// UpdateSettings 更新昵称/头像
func (uc *UserController) UpdateSettings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var input struct {
		Name  string `json:"name"`
		Image string `json:"image"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := uc.store.UpdateUser(user.ID, input.Name, input.Image)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	log.Printf("user %s updated settings", user.ID)
	utils.RespondSuccess(c, updated, nil)
}

// GetUsers 其他所有用户，用于发起新会话
func (uc *UserController) GetUsers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	users, err := uc.store.ListUsersExcept(user.ID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	utils.RespondSuccess(c, users, nil)
}

// GetActiveUsers 当前在线成员（按邮箱）
func (uc *UserController) GetActiveUsers(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	utils.RespondSuccess(c, gin.H{"members": uc.presence.List()}, nil)
}
