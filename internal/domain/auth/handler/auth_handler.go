// Package handler exposes committee authentication over HTTP and provides
// the JWT middleware that guards mutation endpoints.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/UMHC/umhc-finance/internal/domain/auth/common"
	"github.com/UMHC/umhc-finance/internal/domain/auth/repository"
	"github.com/UMHC/umhc-finance/internal/domain/auth/service"
)

const claimsContextKey = "auth.claims"

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// RegisterRoutes mounts the auth endpoints. Login and refresh are public;
// everything else requires a valid access token.
func (h *AuthHandler) RegisterRoutes(public, authed gin.IRoutes) {
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.Refresh)

	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/me", h.Me)
	authed.POST("/auth/password", h.ChangePassword)
	authed.GET("/auth/members", h.ListMembers)
	authed.POST("/auth/members", h.CreateMember)
	authed.PUT("/auth/members/:id/role", h.UpdateMemberRole)
}

// Middleware returns the gin middleware that authenticates requests with a
// Bearer access token and stores the claims on the context.
func (h *AuthHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		claims, err := h.svc.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFromContext returns the authenticated claims set by Middleware.
func ClaimsFromContext(c *gin.Context) (*service.Claims, bool) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*service.Claims)
	return claims, ok
}

type errorResponse struct {
	Error string `json:"error"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type createMemberRequest struct {
	Email       string `json:"email" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role" binding:"required"`
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type memberResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

type loginResponse struct {
	Member memberResponse `json:"member"`
	Tokens tokenResponse  `json:"tokens"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.svc.Login(c.Request.Context(), service.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.serviceError(c, err, "login")
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Member: toMemberResponse(result.User),
		Tokens: toTokenResponse(result.Tokens),
	})
}

// Refresh handles POST /auth/refresh, rotating the refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := h.svc.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.serviceError(c, err, "refresh tokens")
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(tokens))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.serviceError(c, err, "logout")
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me, echoing the authenticated member.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		h.respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           claims.UserID,
		"email":        claims.Email,
		"display_name": claims.DisplayName,
		"role":         claims.Role,
	})
}

// ChangePassword handles POST /auth/password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		h.respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "invalid token subject")
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.serviceError(c, err, "change password")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMembers handles GET /auth/members.
func (h *AuthHandler) ListMembers(c *gin.Context) {
	members, err := h.svc.ListMembers(c.Request.Context())
	if err != nil {
		h.serviceError(c, err, "list members")
		return
	}

	resp := make([]memberResponse, len(members))
	for i := range members {
		resp[i] = toMemberResponse(&members[i])
	}
	c.JSON(http.StatusOK, gin.H{"members": resp})
}

// CreateMember handles POST /auth/members. The service enforces that only
// the treasurer can add accounts.
func (h *AuthHandler) CreateMember(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		h.respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "email, display_name, password, and role are required")
		return
	}

	member, err := h.svc.CreateMember(c.Request.Context(), claims.Role, service.CreateMemberParams{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Role:        req.Role,
	})
	if err != nil {
		h.serviceError(c, err, "create member")
		return
	}
	c.JSON(http.StatusCreated, toMemberResponse(member))
}

// UpdateMemberRole handles PUT /auth/members/:id/role.
func (h *AuthHandler) UpdateMemberRole(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		h.respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid member id")
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "role is required")
		return
	}

	actorID, err := uuid.Parse(claims.UserID)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "invalid token subject")
		return
	}

	if err := h.svc.UpdateMemberRole(c.Request.Context(), actorID, claims.Role, memberID, req.Role); err != nil {
		h.serviceError(c, err, "update member role")
		return
	}
	c.Status(http.StatusNoContent)
}

// serviceError maps auth failures onto HTTP statuses without leaking which
// part of a credential check failed.
func (h *AuthHandler) serviceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		h.respondError(c, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, common.ErrSessionNotFound), errors.Is(err, common.ErrSessionExpired), errors.Is(err, service.ErrInvalidToken):
		h.respondError(c, http.StatusUnauthorized, "session expired, log in again")
	case errors.Is(err, common.ErrUserNotFound):
		h.respondError(c, http.StatusNotFound, "member not found")
	case errors.Is(err, common.ErrUserAlreadyExists):
		h.respondError(c, http.StatusConflict, "a member with that email already exists")
	case errors.Is(err, common.ErrWeakPassword):
		h.respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrForbidden):
		h.respondError(c, http.StatusForbidden, err.Error())
	default:
		h.logger.Error(action+" failed",
			slog.Any("error", err),
			slog.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *AuthHandler) respondError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{Error: message})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

func toMemberResponse(u *repository.User) memberResponse {
	return memberResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}

func toTokenResponse(t *service.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:           t.AccessToken,
		RefreshToken:          t.RefreshToken,
		AccessTokenExpiresAt:  t.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: t.RefreshTokenExpiresAt,
	}
}
