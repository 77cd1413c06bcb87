package walletauth

import "context"

// Client represents the public interface for interacting with the wallet auth service.
// Methods taking a token send it as the bearer credential.
type Client interface {
	// Challenge returns a nonce-bound login challenge
	Challenge(ctx context.Context) (Challenge, error)

	// Login verifies the signed login message and returns a bearer token
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)

	// Verify checks a signature without creating a session
	Verify(ctx context.Context, address, message, signature string) (string, error)

	// Tokens lists the account's sessions, the caller's own is marked current
	Tokens(ctx context.Context, token string) ([]SessionInfo, error)

	// Deactivate revokes a session; loggedOut reports that token itself was revoked
	Deactivate(ctx context.Context, token, sessionID string) (loggedOut bool, err error)

	// Logout revokes the token's own session
	Logout(ctx context.Context, token string) error

	// Addresses lists the account's linked addresses
	Addresses(ctx context.Context, token string) ([]Address, error)

	// LinkAddress links an address on a network, without login rights
	LinkAddress(ctx context.Context, token, address, network string) (Address, error)

	// SetAddressAuth enables (with proof) or disables login with an address
	SetAddressAuth(ctx context.Context, token string, req SetAuthRequest) (Address, error)

	// RequestSync triggers a portfolio ingestion job
	RequestSync(ctx context.Context, token, kind string) error

	// Chains lists the network directory
	Chains(ctx context.Context) ([]Chain, error)
}

// Challenge is a login challenge to be signed by the wallet
type Challenge struct {
	Token     string `json:"challenge"`
	Message   string `json:"message"`
	ExpiresAt int64  `json:"expires_at"`
}

// LoginRequest is a signed login attempt. Challenge is optional.
type LoginRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Challenge string `json:"challenge,omitempty"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	AccessToken    string `json:"access_token"`
	TokenType      string `json:"token_type"`
	ExpiresAt      int64  `json:"expires_at"`
	Address        string `json:"address"`
	AccountCreated bool   `json:"account_created"`
}

// SessionInfo is a listed session
type SessionInfo struct {
	ID        string `json:"id"`
	Current   bool   `json:"current"`
	Address   string `json:"address"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
	IsActive  bool   `json:"is_active"`
}

// Address is a linked address record
type Address struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	Network   string `json:"network"`
	CanAuth   bool   `json:"can_auth"`
	CreatedAt int64  `json:"created_at"`
}

// SetAuthRequest toggles login rights. Enabling needs Message and Signature.
type SetAuthRequest struct {
	Address   string `json:"-"`
	Enable    bool   `json:"enable"`
	Message   string `json:"message,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Chain is a network directory entry
type Chain struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
