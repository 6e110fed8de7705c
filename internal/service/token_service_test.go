package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTokenService() *TokenService {
	return NewTokenService(TokenConfig{
		Secret:            "test-secret",
		Issuer:            "commune-api",
		AccessExpiration:  30 * time.Minute,
		RefreshExpiration: 14 * 24 * time.Hour,
	})
}

func TestTokenServiceAccessRoundTrip(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.IssueAccessToken(7)
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(7), claims.UserID)
	require.Equal(t, "commune-api", claims.Issuer)
}

func TestTokenServiceRefreshCarriesSession(t *testing.T) {
	svc := newTestTokenService()

	token, expiresAt, err := svc.IssueRefreshToken("session-1", 7)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().UTC().Add(14*24*time.Hour), expiresAt, time.Minute)

	claims, err := svc.VerifyRefreshToken(token)
	require.NoError(t, err)
	require.Equal(t, "session-1", claims.SessionID)
	require.Equal(t, int64(7), claims.UserID)
}

func TestTokenServiceRejectsForeignSignature(t *testing.T) {
	svc := newTestTokenService()
	other := NewTokenService(TokenConfig{Secret: "other-secret", Issuer: "commune-api", AccessExpiration: time.Minute, RefreshExpiration: time.Hour})

	token, err := other.IssueAccessToken(7)
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	require.Error(t, err)
}

func TestTokenServiceRejectsExpiredAccessToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{
		Secret:            "test-secret",
		Issuer:            "commune-api",
		AccessExpiration:  -time.Minute,
		RefreshExpiration: time.Hour,
	})

	token, err := svc.IssueAccessToken(7)
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	require.Error(t, err)
}

func TestTokenServiceRejectsAccessTokenAsRefresh(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.IssueAccessToken(7)
	require.NoError(t, err)

	// Parses fine but carries no session id, so renewal cannot find a session.
	claims, err := svc.VerifyRefreshToken(token)
	require.NoError(t, err)
	require.Empty(t, claims.SessionID)
}
