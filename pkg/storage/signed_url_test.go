package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestURLSignerRoundTrip(t *testing.T) {
	signer := NewURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("pictures/acc-1/thumb.png")
	require.NoError(t, err)
	require.False(t, expiresAt.IsZero())

	path, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "pictures/acc-1/thumb.png", path)
}

func TestURLSignerRejectsExpiredAndForeign(t *testing.T) {
	signer := NewURLSigner("secret", time.Minute)
	token, _, err := signer.Sign("pictures/a.png")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = signer.Verify(token)
	require.Error(t, err)

	other := NewURLSigner("other", time.Minute)
	_, err = other.Verify(token)
	require.Error(t, err)

	_, _, err = NewURLSigner("", time.Minute).Sign("x")
	require.Error(t, err)
}
