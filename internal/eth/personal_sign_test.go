package eth

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverRoundTrip(t *testing.T) {
	v := NewVerifier()
	for i := 0; i < 8; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		want := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

		for _, msg := range []string{core.LoginMessage, core.AuthorizationMessage(want), "", "ünïcode ✓"} {
			sig, err := SignMessage(key, []byte(msg))
			require.NoError(t, err)

			got, err := v.Recover(msg, sig)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.NoError(t, v.Verify(msg, sig, strings.ToUpper(want[2:])))
		}
	}
}

func TestRecoverAcceptsRawRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := SignMessage(key, []byte(core.LoginMessage))
	require.NoError(t, err)
	sig[64] -= 27

	addr, err := RecoverAddress([]byte(core.LoginMessage), sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestSingleBitMutationNeverVerifies(t *testing.T) {
	v := NewVerifier()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
	sig, err := SignMessage(key, []byte(core.LoginMessage))
	require.NoError(t, err)

	for bit := 0; bit < len(sig)*8; bit++ {
		mutated := make([]byte, len(sig))
		copy(mutated, sig)
		mutated[bit/8] ^= 1 << (bit % 8)

		err := v.Verify(core.LoginMessage, mutated, addr)
		require.Error(t, err, "bit %d", bit)
		assert.True(t, errors.Is(err, core.ErrSignatureMismatch) || errors.Is(err, core.ErrMalformedSignature),
			"bit %d: %v", bit, err)
	}
}

func TestVerifyWrongMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := SignMessage(key, []byte(core.LoginMessage))
	require.NoError(t, err)

	err = NewVerifier().Verify("Login to somewhere else", sig, crypto.PubkeyToAddress(key.PublicKey).Hex())
	assert.ErrorIs(t, err, core.ErrSignatureMismatch)
	err = NewVerifier().Verify(core.LoginMessage, sig, "0x1234")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestDecodeSignature(t *testing.T) {
	_, err := DecodeSignature("0x1234")
	assert.ErrorIs(t, err, core.ErrMalformedSignature)

	_, err = DecodeSignature("not hex")
	assert.ErrorIs(t, err, core.ErrMalformedSignature)

	raw := make([]byte, SignatureLength)
	raw[64] = 27
	got, err := DecodeSignature(hexutil.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestRecoverRejectsBadRecoveryID(t *testing.T) {
	sig := make([]byte, SignatureLength)
	sig[64] = 5
	_, err := RecoverAddress([]byte("x"), sig)
	assert.ErrorIs(t, err, core.ErrMalformedSignature)
}
