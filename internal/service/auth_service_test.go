package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(store *fakeStore) AuthService {
	return NewAuthService(fakeUserRepo{store}, "test-secret", time.Hour)
}

// TestRegisterAndLogin walks the happy path: register, then authenticate and
// verify the issued token carries the user id.
func TestRegisterAndLogin(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	user, err := svc.Register(context.Background(), "Alice", "alice@example.com", "s3cret-pw", 62.5)
	require.NoError(t, err)
	require.False(t, user.ID.IsZero())
	assert.Equal(t, 62.5, user.BodyWeightKg)
	assert.Empty(t, user.PasswordHash, "hash must never leave the service")

	token, loggedIn, err := svc.Login(context.Background(), "alice@example.com", "s3cret-pw")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.Empty(t, loggedIn.PasswordHash)

	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, "workout-app", claims.Issuer)
}

// TestRegister_DuplicateEmail rejects a second registration for the same email.
func TestRegister_DuplicateEmail(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	_, err := svc.Register(context.Background(), "Alice", "alice@example.com", "s3cret-pw", 0)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "Mallory", "alice@example.com", "other-pw", 0)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

// TestRegister_Validation rejects empty fields and negative body weight.
func TestRegister_Validation(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	_, err := svc.Register(context.Background(), "", "alice@example.com", "pw", 0)
	assert.Error(t, err)

	_, err = svc.Register(context.Background(), "Alice", "alice@example.com", "pw", -5)
	assert.True(t, IsValidationError(err))
	assert.Empty(t, store.users)
}

// TestLogin_Failures maps unknown users and wrong passwords to the same error.
func TestLogin_Failures(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	_, err := svc.Register(context.Background(), "Alice", "alice@example.com", "s3cret-pw", 0)
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "s3cret-pw")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, _, err = svc.Login(context.Background(), "alice@example.com", "wrong-pw")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
