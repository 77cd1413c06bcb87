package tokenizer

import "github.com/golang-jwt/jwt/v5"

// ChallengeClaims bind a login nonce; ID is the one-time challenge id
type ChallengeClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// SessionClaims carry (account, address, session) for bearer tokens.
// Subject is the account id, ID is the session id.
type SessionClaims struct {
	jwt.RegisteredClaims
	Address string `json:"addr"`
}
