package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller. It is built once from token claims
// and passed inward unchanged.
type Identity struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

var ErrInvalidClaims = errors.New("token carries no user id")

func GenerateToken(identity Identity, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":    identity.ID,
		"email": identity.Email,
		"exp":   time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(tokenString, secret string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
}

// IdentityFromClaims accepts tokens that carry the user id as either "id"
// or "userId".
func IdentityFromClaims(claims jwt.MapClaims) (Identity, error) {
	raw, ok := claims["id"]
	if !ok {
		raw, ok = claims["userId"]
	}
	if !ok {
		return Identity{}, ErrInvalidClaims
	}

	id, err := toUint(raw)
	if err != nil || id == 0 {
		return Identity{}, ErrInvalidClaims
	}

	email, _ := claims["email"].(string)
	return Identity{ID: id, Email: email}, nil
}

func toUint(v interface{}) (uint, error) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != float64(uint(n)) {
			return 0, fmt.Errorf("invalid id %v", n)
		}
		return uint(n), nil
	case string:
		id, err := strconv.ParseUint(n, 10, 64)
		return uint(id), err
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}
