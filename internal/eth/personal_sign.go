// Package eth implements EIP-191 personal-sign recovery on top of go-ethereum.
package eth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletauth/core"
)

// SignatureLength is the length of an r || s || v signature
const SignatureLength = crypto.SignatureLength

// DecodeSignature decodes a 0x-prefixed hex signature
func DecodeSignature(sig string) ([]byte, error) {
	decoded, err := hexutil.Decode(strings.TrimSpace(sig))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", core.ErrMalformedSignature)
	}
	if len(decoded) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes: %w", SignatureLength, core.ErrMalformedSignature)
	}
	return decoded, nil
}

// RecoverAddress recovers the address that personal-signed message
func RecoverAddress(message []byte, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d: %w", len(signature), core.ErrMalformedSignature)
	}

	// Wallets emit v as 27/28, crypto.SigToPub wants 0/1.
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	switch v := sig[crypto.RecoveryIDOffset]; v {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] = v - 27
	default:
		return common.Address{}, fmt.Errorf("invalid recovery id %d: %w", v, core.ErrMalformedSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrMalformedSignature)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignMessage personal-signs message the way browser wallets do (v = 27/28)
func SignMessage(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Verifier recovers signers of personal-signed messages
type Verifier struct{}

// NewVerifier creates a new verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Recover returns the lowercase hex address that signed message
func (v *Verifier) Recover(message string, signature []byte) (string, error) {
	addr, err := RecoverAddress([]byte(message), signature)
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Hex()), nil
}

// Verify checks that claimed signed message. claimed may be in any hex case,
// with or without the 0x prefix.
func (v *Verifier) Verify(message string, signature []byte, claimed string) error {
	if !common.IsHexAddress(claimed) {
		return core.ErrInvalidAddress
	}
	recovered, err := RecoverAddress([]byte(message), signature)
	if err != nil {
		return err
	}
	if recovered != common.HexToAddress(claimed) {
		return core.ErrSignatureMismatch
	}
	return nil
}
