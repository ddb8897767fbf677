package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
)

type authRepoStub struct {
	mu       sync.Mutex
	users    map[string]*models.User
	byEmail  map[string]*models.User
	tokens   map[string]*models.RefreshToken
	auditLog []models.AuditLog
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]*models.User),
		tokens:  make(map[string]*models.RefreshToken),
	}
}

func (s *authRepoStub) addUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	s.byEmail[strings.ToLower(user.Email)] = user
}

func (s *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (s *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (s *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.LastLogin = &ts
	}
	return nil
}

func (s *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.PasswordHash = passwordHash
		user.UpdatedAt = updatedAt
	}
	return nil
}

func (s *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, token := range s.tokens {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

func (s *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.tokens[token.Token] = &copied
	return nil
}

func (s *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (s *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (s *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog = append(s.auditLog, *log)
	return nil
}

func (s *authRepoStub) activeTokens(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, token := range s.tokens {
		if token.UserID == userID && !token.Revoked {
			count++
		}
	}
	return count
}

func newAuthService(repo *authRepoStub, singleSession bool) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "test",
		SingleSession:      singleSession,
	})
}

func seedUser(repo *authRepoStub, email, password string, role models.UserRole, active bool) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:           "user-" + email,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         role,
		Active:       active,
	}
	repo.addUser(user)
	return user
}

func TestAuthServiceLoginIssuesTokenPair(t *testing.T) {
	repo := newAuthRepoStub()
	seedUser(repo, "student@example.com", "secret123", models.RoleStudent, true)
	svc := newAuthService(repo, false)

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleStudent, res.User.Role)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-student@example.com", claims.UserID)

	require.Len(t, repo.auditLog, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLog[0].Action)
}

func TestAuthServiceLoginRejectsBadPassword(t *testing.T) {
	repo := newAuthRepoStub()
	seedUser(repo, "student@example.com", "secret123", models.RoleStudent, true)
	svc := newAuthService(repo, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRejectsInactiveAccount(t *testing.T) {
	repo := newAuthRepoStub()
	seedUser(repo, "former@example.com", "secret123", models.RoleEmployee, false)
	svc := newAuthService(repo, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "former@example.com",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceSingleSessionRevokesPreviousTokens(t *testing.T) {
	repo := newAuthRepoStub()
	user := seedUser(repo, "admin@example.com", "secret123", models.RoleAdmin, true)
	svc := newAuthService(repo, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.activeTokens(user.ID))
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newAuthRepoStub()
	seedUser(repo, "student@example.com", "secret123", models.RoleStudent, true)
	svc := newAuthService(repo, false)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The consumed token must not work a second time.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := newAuthRepoStub()
	owner := seedUser(repo, "owner@example.com", "secret123", models.RoleStudent, true)
	other := seedUser(repo, "other@example.com", "secret123", models.RoleStudent, true)
	svc := newAuthService(repo, false)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: owner.Email, Password: "secret123"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, other.ID, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, owner.ID, models.LoginRequest{}))
	assert.Equal(t, 0, repo.activeTokens(owner.ID))
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	repo := newAuthRepoStub()
	user := seedUser(repo, "student@example.com", "secret123", models.RoleStudent, true)
	svc := newAuthService(repo, false)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "newsecret",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.activeTokens(user.ID))

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "newsecret"})
	require.NoError(t, err)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := newAuthRepoStub()
	seedUser(repo, "student@example.com", "secret123", models.RoleStudent, true)
	svc := newAuthService(repo, false)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
