package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"qahwa-pos/internal/database/models"
	"qahwa-pos/internal/utils"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuthHandler(db *gorm.DB, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{db: db, logger: logger}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, errorResponse("Email already registered"))
		return
	} else if err != gorm.ErrRecordNotFound {
		h.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to process password"))
		return
	}

	role := req.Role
	if role != "admin" {
		role = "seller"
	}

	user := models.User{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Email:    req.Email,
		Password: string(pwHash),
		Role:     role,
	}
	if err := h.db.Create(&user).Error; err != nil {
		h.logger.Error("user create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to create user"))
		return
	}

	token, exp, err := utils.GenerateToken(user.ID, user.Role, tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to generate token"))
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", user.Role))
	c.JSON(http.StatusCreated, successResponse("User registered successfully", gin.H{
		"user":       user,
		"token":      token,
		"expires_at": exp,
	}))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, errorResponse("Invalid email or password"))
			return
		}
		h.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("Invalid email or password"))
		return
	}

	token, exp, err := utils.GenerateToken(user.ID, user.Role, tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Login successful", gin.H{
		"user":       user,
		"token":      token,
		"expires_at": exp,
	}))
}

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// ListUsers returns all accounts newest first, for the admin console.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.db.WithContext(c.Request.Context()).Order("created_at desc").Find(&users).Error; err != nil {
		h.logger.Error("user list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to list users"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Users retrieved successfully", users))
}

// CreateUser lets an admin provision a seller account. Admin accounts come
// only from registration.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, errorResponse("Email already registered"))
		return
	} else if err != gorm.ErrRecordNotFound {
		h.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to process password"))
		return
	}

	user := models.User{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Email:    req.Email,
		Password: string(pwHash),
		Role:     "seller",
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		h.logger.Error("user create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to create user"))
		return
	}

	h.logger.Info("seller account created", zap.String("user_id", user.ID))
	c.JSON(http.StatusCreated, successResponse("Seller account created successfully", user))
}
