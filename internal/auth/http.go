package auth

import (
	"errors"
	"net/http"

	"github.com/abduss/grimoire/internal/metrics"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts authentication endpoints under /auth.
func RegisterRoutes(router *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", handler.login)
		authGroup.GET("/check-token", handler.checkToken)
		authGroup.POST("/refresh", handler.refresh)
		authGroup.POST("/logout", AuthMiddleware(service.Tokens()), handler.logout)
	}
}

type httpHandler struct {
	service *Service
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type checkTokenResponse struct {
	Valid     bool      `json:"valid"`
	TokenType TokenType `json:"token_type"`
	Claims    Claims    `json:"claims"`
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			metrics.ObserveLogin(metrics.OutcomeRejected)
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrAuthenticationFailed.Error()})
			return
		}
		metrics.ObserveLogin(metrics.OutcomeError)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
		return
	}

	metrics.ObserveLogin(metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, pair)
}

func (h *httpHandler) checkToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
		return
	}

	claims, err := h.service.CheckToken(header)
	if err != nil {
		writeTokenError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkTokenResponse{Valid: true, TokenType: claims.Type(), Claims: claims})
}

func (h *httpHandler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			metrics.ObserveRefresh(metrics.OutcomeRejected)
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidRefreshToken.Error()})
			return
		}
		metrics.ObserveRefresh(metrics.OutcomeError)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh token"})
		return
	}

	metrics.ObserveRefresh(metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, pair)
}

func (h *httpHandler) logout(c *gin.Context) {
	claims, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": h.service.Logout(claims), "token_family": claims.TokenFamily})
}

func writeTokenError(c *gin.Context, err error) {
	var verifyErr *TokenVerificationError
	var mismatch *TokenTypeMismatchError
	switch {
	case errors.As(err, &mismatch):
		c.JSON(http.StatusUnauthorized, gin.H{"error": mismatch.Error()})
	case errors.As(err, &verifyErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": verifyErr.Error(), "expired": verifyErr.Expired()})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
	}
}
