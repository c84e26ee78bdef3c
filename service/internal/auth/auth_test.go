// internal/auth/auth_test.go
package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	iss, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)
	sid := uuid.New()

	tok, err := iss.Issue(sid)
	require.NoError(t, err)
	got, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, sid, got)
	assert.NoError(t, iss.Authorize(tok, sid))
	assert.ErrorIs(t, iss.Authorize(tok, uuid.New()), ErrInvalidToken)
}

func TestVerifyRejects(t *testing.T) {
	iss, err := NewIssuer("secret", time.Minute)
	require.NoError(t, err)
	other, err := NewIssuer("other", time.Minute)
	require.NoError(t, err)
	sid := uuid.New()

	foreign, err := other.Issue(sid)
	require.NoError(t, err)
	_, err = iss.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	tok, err := iss.Issue(sid)
	require.NoError(t, err)
	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: sid.String()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

	_, err = iss.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerErrors(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.Error(t, err)
	_, err = NewIssuer("s", 0)
	assert.Error(t, err)
}
