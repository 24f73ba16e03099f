package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"group-chat-service/internal/auth"
	"group-chat-service/internal/directory"
	"group-chat-service/internal/mocks"
	"group-chat-service/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID int, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestVerifyResolvesIdentity(t *testing.T) {
	dir := new(mocks.DirectoryMock)
	verifier := auth.NewJWTVerifier(testSecret, dir)

	dir.On("GetUser", mock.Anything, 7).
		Return(models.User{ID: 7, Username: "alice", AvatarURL: "http://img"}, nil).Once()

	identity, err := verifier.Verify(context.Background(), signToken(t, 7, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	require.Equal(t, auth.Identity{UserID: 7, Username: "alice", AvatarURL: "http://img"}, identity)
	dir.AssertExpectations(t)
}

func TestVerifyMissingToken(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret, new(mocks.DirectoryMock))

	_, err := verifier.Verify(context.Background(), "")
	require.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret, new(mocks.DirectoryMock))

	_, err := verifier.Verify(context.Background(), signToken(t, 7, time.Now().Add(-time.Hour)))
	require.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	verifier := auth.NewJWTVerifier("other-secret", new(mocks.DirectoryMock))

	_, err := verifier.Verify(context.Background(), signToken(t, 7, time.Now().Add(time.Hour)))
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyUnknownUser(t *testing.T) {
	dir := new(mocks.DirectoryMock)
	verifier := auth.NewJWTVerifier(testSecret, dir)

	dir.On("GetUser", mock.Anything, 7).
		Return(nil, directory.ErrUserNotFound).Once()

	_, err := verifier.Verify(context.Background(), signToken(t, 7, time.Now().Add(time.Hour)))
	require.ErrorIs(t, err, auth.ErrUnknownUser)
}

func TestVerifyTokenWithoutSubject(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret, new(mocks.DirectoryMock))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), signed)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}
