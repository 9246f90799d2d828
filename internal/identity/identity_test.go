package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, subject string, role string, expiresIn time.Duration) string {
	t.Helper()

	claims := sessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerify_ValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	userID := uuid.New()

	p, err := v.Verify(signToken(t, testSecret, userID.String(), "doctor", time.Hour))
	require.NoError(t, err)
	require.Equal(t, userID, p.UserID)
	require.Equal(t, RoleDoctor, p.Role)
	require.True(t, p.IsDoctor())
	require.False(t, p.IsPatient())
}

func TestVerify_Rejections(t *testing.T) {
	v := NewVerifier(testSecret)
	userID := uuid.New().String()

	cases := map[string]string{
		"wrong secret":   signToken(t, "other-secret", userID, "patient", time.Hour),
		"expired":        signToken(t, testSecret, userID, "patient", -time.Hour),
		"bad subject":    signToken(t, testSecret, "not-a-uuid", "patient", time.Hour),
		"unknown role":   signToken(t, testSecret, userID, "pharmacist", time.Hour),
		"garbage string": "not.a.token",
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := Principal{UserID: uuid.New(), Role: RolePatient}

	ctx := WithPrincipal(context.Background(), p)
	got, err := FromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, p, got)

	_, err = FromContext(context.Background())
	require.ErrorIs(t, err, ErrNoPrincipal)
}
