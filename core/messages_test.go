package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress(" 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed ")
	require.NoError(t, err)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", got)

	got, err = NormalizeAddress("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", got)

	for _, bad := range []string{"", "0x123", "not an address", "0xZZaeb6053f3e94c9b9a09f33669435e7ef1beaed"} {
		_, err := NormalizeAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestIsAuthorizationMessage(t *testing.T) {
	addr := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	assert.True(t, IsAuthorizationMessage("Authorize address 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr))
	assert.False(t, IsAuthorizationMessage(LoginMessage, addr))
	assert.False(t, IsAuthorizationMessage("Authorize address 0x0000000000000000000000000000000000000001", addr))
	assert.False(t, IsAuthorizationMessage("AUTHORIZE ADDRESS "+addr, addr))
	assert.False(t, IsAuthorizationMessage("authorize address "+addr, addr))
	assert.False(t, IsAuthorizationMessage("Authorize address "+addr+" ", addr))
}

func TestEnsureAuthRemains(t *testing.T) {
	assert.ErrorIs(t, EnsureAuthRemains(nil, "eth"), ErrLastAuthAddress)
	assert.ErrorIs(t, EnsureAuthRemains([]LinkedAddress{{NetworkID: "eth", CanAuth: false}}, "eth"), ErrLastAuthAddress)
	assert.NoError(t, EnsureAuthRemains([]LinkedAddress{{NetworkID: "eth", CanAuth: false}, {NetworkID: "eth", CanAuth: true}}, "eth"))

	// an authorized record elsewhere cannot log in
	bscOnly := []LinkedAddress{{NetworkID: "eth", CanAuth: false}, {NetworkID: "bsc", CanAuth: true}}
	assert.ErrorIs(t, EnsureAuthRemains(bscOnly, "eth"), ErrLastAuthAddress)
	assert.NoError(t, EnsureAuthRemains(bscOnly, "bsc"))
}

func TestChallengeMessage(t *testing.T) {
	c := Challenge{Nonce: "abc"}
	assert.Equal(t, "Login to Data Hunt Web3 Portal\nNonce: abc", c.Message())
}
