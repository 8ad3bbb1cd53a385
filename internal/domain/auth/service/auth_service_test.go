package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UMHC/umhc-finance/internal/domain/auth/common"
	"github.com/UMHC/umhc-finance/internal/domain/auth/repository"
)

func newTestService(t *testing.T) (*AuthService, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewAuthRepository(mock)
	mgr := NewJWTTokenManager("test-secret", time.Hour)
	return NewAuthService(repo, mgr, logger), mock
}

func userRow(id uuid.UUID, email, hash, role string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "email", "password_hash", "display_name", "role", "created_at", "updated_at",
	}).AddRow(id, email, hash, "Sam", role, now, now)
}

func TestAuthService_Login(t *testing.T) {
	hash, err := HashPassword("correct-horse-1")
	require.NoError(t, err)
	userID := uuid.New()

	t.Run("success issues tokens and stores session", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery(`SELECT .+ FROM users WHERE lower\(email\) = lower\(\$1\)`).
			WithArgs("treasurer@umhc.org.uk").
			WillReturnRows(userRow(userID, "treasurer@umhc.org.uk", hash, "treasurer"))
		mock.ExpectExec(`INSERT INTO refresh_tokens`).
			WithArgs(userID, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		result, err := svc.Login(context.Background(), LoginParams{
			Email:    "treasurer@umhc.org.uk",
			Password: "correct-horse-1",
		})
		require.NoError(t, err)
		assert.Equal(t, userID, result.User.ID)
		assert.NotEmpty(t, result.Tokens.AccessToken)
		assert.NotEmpty(t, result.Tokens.RefreshToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery(`SELECT .+ FROM users`).
			WithArgs("treasurer@umhc.org.uk").
			WillReturnRows(userRow(userID, "treasurer@umhc.org.uk", hash, "treasurer"))

		_, err := svc.Login(context.Background(), LoginParams{
			Email:    "treasurer@umhc.org.uk",
			Password: "wrong",
		})
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
	})

	t.Run("unknown email maps to invalid credentials", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery(`SELECT .+ FROM users`).
			WithArgs("nobody@umhc.org.uk").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "email", "password_hash", "display_name", "role", "created_at", "updated_at",
			}))

		_, err := svc.Login(context.Background(), LoginParams{
			Email:    "nobody@umhc.org.uk",
			Password: "whatever123",
		})
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
	})
}

func TestAuthService_RefreshTokens(t *testing.T) {
	userID := uuid.New()
	refreshToken := "0123456789abcdef0123456789abcdef"
	tokenHash := hashToken(refreshToken)

	t.Run("rotates the session", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery(`SELECT id, user_id, token_hash, expires_at, revoked_at, created_at`).
			WithArgs(tokenHash).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at",
			}).AddRow(uuid.New(), userID, tokenHash, time.Now().Add(time.Hour), nil, time.Now()))
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
			WithArgs(userID).
			WillReturnRows(userRow(userID, "sec@umhc.org.uk", "x", "committee"))
		mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at = NOW\(\)`).
			WithArgs(tokenHash).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO refresh_tokens`).
			WithArgs(userID, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		pair, err := svc.RefreshTokens(context.Background(), refreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, refreshToken, pair.RefreshToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired session rejected", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery(`SELECT id, user_id, token_hash, expires_at, revoked_at, created_at`).
			WithArgs(tokenHash).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at",
			}).AddRow(uuid.New(), userID, tokenHash, time.Now().Add(-time.Hour), nil, time.Now()))

		_, err := svc.RefreshTokens(context.Background(), refreshToken)
		require.ErrorIs(t, err, common.ErrSessionExpired)
	})

	t.Run("revoked session rejected", func(t *testing.T) {
		svc, mock := newTestService(t)
		revoked := time.Now().Add(-time.Minute)

		mock.ExpectQuery(`SELECT id, user_id, token_hash, expires_at, revoked_at, created_at`).
			WithArgs(tokenHash).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at",
			}).AddRow(uuid.New(), userID, tokenHash, time.Now().Add(time.Hour), &revoked, time.Now()))

		_, err := svc.RefreshTokens(context.Background(), refreshToken)
		require.ErrorIs(t, err, common.ErrSessionExpired)
	})
}

func TestAuthService_CreateMember(t *testing.T) {
	t.Run("treasurer creates committee member", func(t *testing.T) {
		svc, mock := newTestService(t)
		newID := uuid.New()

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("sec@umhc.org.uk", pgxmock.AnyArg(), "Alex", "committee").
			WillReturnRows(userRow(newID, "sec@umhc.org.uk", "hash", "committee"))

		member, err := svc.CreateMember(context.Background(), repository.RoleTreasurer, CreateMemberParams{
			Email:       "sec@umhc.org.uk",
			DisplayName: "Alex",
			Password:    "snowdonia26",
			Role:        repository.RoleCommittee,
		})
		require.NoError(t, err)
		assert.Equal(t, newID, member.ID)
	})

	t.Run("committee member cannot create accounts", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.CreateMember(context.Background(), repository.RoleCommittee, CreateMemberParams{
			Email:       "x@umhc.org.uk",
			DisplayName: "X",
			Password:    "snowdonia26",
			Role:        repository.RoleMember,
		})
		require.ErrorIs(t, err, common.ErrForbidden)
	})

	t.Run("weak password rejected before hitting the db", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.CreateMember(context.Background(), repository.RoleTreasurer, CreateMemberParams{
			Email:       "x@umhc.org.uk",
			DisplayName: "X",
			Password:    "short",
			Role:        repository.RoleMember,
		})
		require.ErrorIs(t, err, common.ErrWeakPassword)
	})
}

func TestAuthService_UpdateMemberRole(t *testing.T) {
	actorID := uuid.New()

	t.Run("treasurer cannot demote themselves", func(t *testing.T) {
		svc, _ := newTestService(t)

		err := svc.UpdateMemberRole(context.Background(), actorID, repository.RoleTreasurer, actorID, repository.RoleMember)
		require.ErrorIs(t, err, common.ErrForbidden)
	})

	t.Run("treasurer promotes a member", func(t *testing.T) {
		svc, mock := newTestService(t)
		memberID := uuid.New()

		mock.ExpectExec(`UPDATE users SET role = \$2`).
			WithArgs(memberID, repository.RoleCommittee).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := svc.UpdateMemberRole(context.Background(), actorID, repository.RoleTreasurer, memberID, repository.RoleCommittee)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuthService_Bootstrap(t *testing.T) {
	t.Run("skips when members exist", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery(`SELECT .+ FROM users`).
			WillReturnRows(userRow(uuid.New(), "t@umhc.org.uk", "hash", "treasurer"))

		require.NoError(t, svc.Bootstrap(context.Background(), "t@umhc.org.uk"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates treasurer on empty table", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery(`SELECT .+ FROM users`).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "email", "password_hash", "display_name", "role", "created_at", "updated_at",
			}))
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("t@umhc.org.uk", pgxmock.AnyArg(), "Treasurer", repository.RoleTreasurer).
			WillReturnRows(userRow(uuid.New(), "t@umhc.org.uk", "hash", "treasurer"))

		require.NoError(t, svc.Bootstrap(context.Background(), "t@umhc.org.uk"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no-op without admin email", func(t *testing.T) {
		svc, _ := newTestService(t)
		require.NoError(t, svc.Bootstrap(context.Background(), ""))
	})
}
