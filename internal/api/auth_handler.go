package api

import (
	"fmt"
	"net/http"

	"tradestream/internal/auth"
	"tradestream/internal/cache"
	"tradestream/internal/config"
	"tradestream/internal/errors"
	"tradestream/internal/logger"
	"tradestream/internal/middleware"
	"tradestream/internal/validation"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	service  *auth.Service
	throttle cache.RateLimiter
	limits   config.LoginThrottleConfig
	log      logger.Logger
}

// NewAuthHandler creates a new auth handler. A nil throttle disables login
// throttling.
func NewAuthHandler(service *auth.Service, throttle cache.RateLimiter, limits config.LoginThrottleConfig, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		throttle: throttle,
		limits:   limits,
		log:      log,
	}
}

// LoginRequest represents a login request. It binds from JSON or from an
// OAuth2 password-flow form.
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=4,max=20,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"fullName"`
}

// @Summary Register a user
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "New user"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, validation.BindError(err))
		return
	}

	if _, err := h.service.Register(c.Request.Context(), auth.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{
		Message: fmt.Sprintf("User %s registered successfully", req.Username),
	})
}

// @Summary User login
// @Description Exchange username and password for a bearer token
// @Tags Auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} auth.TokenGrant
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.AbortWithError(c, validation.BindError(err))
		return
	}

	if !h.allowAttempt(c, req.Username) {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeRateLimit, "Too many login attempts", nil))
		return
	}

	grant, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, grant)
}

// allowAttempt counts one login attempt for the client and username. A
// failing counter store lets the attempt through.
func (h *AuthHandler) allowAttempt(c *gin.Context, username string) bool {
	if h.throttle == nil || !h.limits.Enabled {
		return true
	}

	key := "login:" + c.ClientIP() + ":" + username
	ok, err := h.throttle.CheckRateLimit(c.Request.Context(), key, h.limits.MaxAttempts, h.limits.Window)
	if err != nil {
		h.log.Warn("Login throttle unavailable", "error", err.Error())
		return true
	}
	if !ok {
		h.log.Info("Login throttled", "client_ip", c.ClientIP())
	}
	return ok
}
