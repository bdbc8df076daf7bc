package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(Identity{ID: 12, Email: "a@campus.edu"}, "s3cret", time.Hour)
	require.NoError(t, err)

	parsed, err := ValidateToken(token, "s3cret")
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	id, err := IdentityFromClaims(parsed.Claims.(jwt.MapClaims))
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: 12, Email: "a@campus.edu"}, id)

	_, err = ValidateToken(token, "wrong")
	assert.Error(t, err)

	expired, err := GenerateToken(Identity{ID: 1}, "s3cret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired, "s3cret")
	assert.Error(t, err)
}

func TestIdentityFromClaimsNormalisesShapes(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    uint
		wantErr bool
	}{
		{name: "id claim", claims: jwt.MapClaims{"id": float64(3)}, want: 3},
		{name: "userId claim", claims: jwt.MapClaims{"userId": float64(4)}, want: 4},
		{name: "string userId", claims: jwt.MapClaims{"userId": "5"}, want: 5},
		{name: "id wins", claims: jwt.MapClaims{"id": float64(6), "userId": float64(7)}, want: 6},
		{name: "missing", claims: jwt.MapClaims{"email": "x"}, wantErr: true},
		{name: "zero", claims: jwt.MapClaims{"id": float64(0)}, wantErr: true},
		{name: "fractional", claims: jwt.MapClaims{"id": 1.5}, wantErr: true},
		{name: "wrong type", claims: jwt.MapClaims{"id": true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IdentityFromClaims(tt.claims)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClaims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}
