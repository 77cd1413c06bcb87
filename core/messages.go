package core

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// LoginMessage is the static phrase wallets sign to log in
const LoginMessage = "Login to Data Hunt Web3 Portal"

// NonceLoginMessage binds a server-issued nonce into the login phrase
func NonceLoginMessage(nonce string) string {
	return LoginMessage + "\nNonce: " + nonce
}

const authorizationPrefix = "Authorize address "

// AuthorizationMessage is the phrase an address signs to become a login credential.
// Only this phrase is accepted when enabling auth, never the login message.
func AuthorizationMessage(address string) string {
	return authorizationPrefix + address
}

// IsAuthorizationMessage reports whether message authorizes address. The
// prefix must match exactly; the address part is compared case-insensitively
// so checksummed input matches.
func IsAuthorizationMessage(message, address string) bool {
	rest, ok := strings.CutPrefix(message, authorizationPrefix)
	return ok && strings.EqualFold(rest, address)
}

// NormalizeAddress validates a hex address and returns its lowercase form
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// EnsureAuthRemains enforces the no-lockout invariant on an account's address
// set. Only records on loginNetwork count, since no other record can log in.
func EnsureAuthRemains(addrs []LinkedAddress, loginNetwork string) error {
	for _, a := range addrs {
		if a.CanAuth && a.NetworkID == loginNetwork {
			return nil
		}
	}
	return ErrLastAuthAddress
}
