// Package service implements committee authentication: bcrypt credentials,
// short-lived JWT access tokens, and rotating opaque refresh tokens.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/UMHC/umhc-finance/internal/domain/auth/common"
	"github.com/UMHC/umhc-finance/internal/domain/auth/repository"
)

// LoginParams represents the payload for a login attempt.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult is produced after a successful login.
type LoginResult struct {
	User   *repository.User
	Tokens *TokenPair
}

// CreateMemberParams contains the data for adding a committee member.
type CreateMemberParams struct {
	Email       string
	DisplayName string
	Password    string
	Role        string
}

// AuthService coordinates login, token rotation, and member management.
type AuthService struct {
	repo         *repository.AuthRepository
	tokenManager TokenManager
	logger       *slog.Logger
}

// NewAuthService constructs a new AuthService. Refresh token lifetime is
// owned by the token manager; the stored session expiry mirrors it.
func NewAuthService(repo *repository.AuthRepository, tokenManager TokenManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
		logger:       logger,
	}
}

// Login authenticates a member against stored credentials.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(params.Email))
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !ComparePassword(user.PasswordHash, params.Password) {
		return nil, common.ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("member logged in",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role))

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// Logout revokes the refresh token session. Unknown tokens are not an
// error; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token required", common.ErrSessionNotFound)
	}

	err := s.repo.RevokeSession(ctx, hashToken(refreshToken))
	if err != nil && !errors.Is(err, common.ErrSessionNotFound) {
		return err
	}
	return nil
}

// RefreshTokens validates a refresh token, rotates the session, and issues
// a new pair. A used or expired token cannot be replayed.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrSessionNotFound
	}

	tokenHash := hashToken(refreshToken)
	session, err := s.repo.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		return nil, common.ErrSessionExpired
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RevokeSession(ctx, tokenHash); err != nil && !errors.Is(err, common.ErrSessionNotFound) {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

// ValidateAccessToken validates an access token and returns its claims.
func (s *AuthService) ValidateAccessToken(accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}
	return s.tokenManager.ValidateAccessToken(accessToken)
}

// ChangePassword changes the password for an authenticated member and
// revokes their other sessions.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !ComparePassword(user.PasswordHash, currentPassword) {
		return common.ErrInvalidCredentials
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	if err := s.repo.RevokeUserSessions(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions after password change",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}
	return nil
}

// CreateMember adds a committee member. Only the treasurer manages accounts.
func (s *AuthService) CreateMember(ctx context.Context, actorRole string, params CreateMemberParams) (*repository.User, error) {
	if actorRole != repository.RoleTreasurer {
		return nil, common.ErrForbidden
	}
	if !validRole(params.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrForbidden, params.Role)
	}
	if err := ValidatePassword(params.Password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, strings.TrimSpace(params.Email), hash, params.DisplayName, params.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("member created",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role))
	return user, nil
}

// ListMembers returns every member account.
func (s *AuthService) ListMembers(ctx context.Context) ([]repository.User, error) {
	return s.repo.ListUsers(ctx)
}

// UpdateMemberRole changes a member's role. Treasurer only, and the
// treasurer cannot demote themselves (someone must hold the books).
func (s *AuthService) UpdateMemberRole(ctx context.Context, actorID uuid.UUID, actorRole string, memberID uuid.UUID, role string) error {
	if actorRole != repository.RoleTreasurer {
		return common.ErrForbidden
	}
	if !validRole(role) {
		return fmt.Errorf("%w: unknown role %q", common.ErrForbidden, role)
	}
	if actorID == memberID && role != repository.RoleTreasurer {
		return fmt.Errorf("%w: cannot demote the acting treasurer", common.ErrForbidden)
	}
	return s.repo.UpdateRole(ctx, memberID, role)
}

// Bootstrap creates the initial treasurer account when the users table is
// empty. The generated password is logged once; the treasurer changes it on
// first login.
func (s *AuthService) Bootstrap(ctx context.Context, adminEmail string) error {
	if adminEmail == "" {
		return nil
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	password, err := generateOpaqueToken()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	password = password[:16]

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, adminEmail, hash, "Treasurer", repository.RoleTreasurer)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	s.logger.Warn("created initial treasurer account; change this password immediately",
		slog.String("email", user.Email),
		slog.String("initial_password", password))
	return nil
}

// CleanupSessions removes expired and revoked refresh tokens. Wired to the
// nightly maintenance job.
func (s *AuthService) CleanupSessions(ctx context.Context) error {
	removed, err := s.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("cleaned up refresh token sessions", slog.Int64("removed", removed))
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *repository.User) (*TokenPair, error) {
	tokens, err := s.tokenManager.GenerateTokenPair(user.ID.String(), user.Email, user.DisplayName, user.Role)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateSession(ctx, user.ID, hashToken(tokens.RefreshToken), tokens.RefreshTokenExpiresAt); err != nil {
		return nil, err
	}
	return tokens, nil
}

func validRole(role string) bool {
	switch role {
	case repository.RoleMember, repository.RoleCommittee, repository.RoleTreasurer:
		return true
	}
	return false
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
