package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"group-chat-service/internal/directory"
	"group-chat-service/internal/models"
)

// Authentication failures. Fatal to the triggering operation, never retried.
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrUnknownUser  = errors.New("unknown user")
)

// Identity is the resolved caller behind a verified token.
type Identity struct {
	UserID    int
	Username  string
	AvatarURL string
}

// TokenVerifier resolves a bearer token to an identity. Read-only, no state.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens minted by the auth service and resolves
// the subject against the user directory.
type JWTVerifier struct {
	secret []byte
	dir    directory.Directory
}

func NewJWTVerifier(secret string, dir directory.Directory) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), dir: dir}
}

// Verify checks signature and expiry, then confirms the user still exists.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}
	if !parsed.Valid || c.UserID == 0 {
		return Identity{}, ErrInvalidToken
	}

	user, err := v.dir.GetUser(ctx, c.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return Identity{}, ErrUnknownUser
		}
		return Identity{}, err
	}

	return identityFromUser(user), nil
}

func identityFromUser(u models.User) Identity {
	return Identity{UserID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

// User converts an identity back to the API user shape.
func (id Identity) User() models.User {
	return models.User{ID: id.UserID, Username: id.Username, AvatarURL: id.AvatarURL}
}
