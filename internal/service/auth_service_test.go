package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

type authRepoStub struct {
	user        *models.User
	assignments []models.RoleAssignment
}

func (s authRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "")
	}
	return s.user, nil
}

func (s authRepoStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.user, nil
}

func (s authRepoStub) AssignmentsForUser(ctx context.Context, userID string) ([]models.RoleAssignment, error) {
	return s.assignments, nil
}

func newAuthService(user *models.User, assignments ...models.RoleAssignment) *AuthService {
	return NewAuthService(authRepoStub{user: user, assignments: assignments}, nil, nil, AuthConfig{
		Secret:     "auth-test-secret",
		Expiration: time.Hour,
		Issuer:     "lms-report-api",
	})
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: "u1", Email: "anna@example.com", PasswordHash: string(hash), Active: true}
}

func TestLoginIssuesToken(t *testing.T) {
	svc := newAuthService(testUser(t, "correct-horse"),
		models.RoleAssignment{UserID: "u1", Role: "manager", ContextLevel: models.LevelSystem})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Empty(t, res.User.PasswordHash)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, []string{"manager"}, claims.Roles)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(testUser(t, "correct-horse"))

	cases := []models.LoginRequest{
		{Email: "anna@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "correct-horse"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := testUser(t, "correct-horse")
	user.Active = false
	svc := newAuthService(user)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	issuer := newAuthService(testUser(t, "correct-horse"))
	res, err := issuer.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	verifier := NewAuthService(authRepoStub{}, nil, nil, AuthConfig{Secret: "another-secret", Expiration: time.Hour})
	_, err = verifier.ValidateToken(res.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
