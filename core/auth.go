package core

import "time"

// Challenge represents a server-issued login nonce
type Challenge struct {
	ID        string    // Unique identifier, consumed once on login
	Nonce     string    // Random nonce embedded in the signed message
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Message returns the exact text the wallet must sign for this challenge
func (c *Challenge) Message() string {
	return NonceLoginMessage(c.Nonce)
}

// Account owns linked addresses and sessions
type Account struct {
	ID        int64
	CreatedAt time.Time
}

// LinkedAddress binds an address on a network to an account
type LinkedAddress struct {
	ID        int64     // Unique identifier
	AccountID int64     // Owning account
	Address   string    // Normalized lowercase hex address
	NetworkID string    // Chain directory id, e.g. "eth"
	CanAuth   bool      // Whether the address may be used to log in
	CreatedAt time.Time // When the address was linked
}

// Session represents an issued bearer session
type Session struct {
	ID        string    // Opaque session identifier (token jti)
	AccountID int64     // Owning account
	Address   string    // Address that authorized the login
	CreatedAt time.Time // When the session was issued
	ExpiresAt time.Time // When the bearer token stops being accepted
	Active    bool      // False once revoked, never reset
}

// SessionView is a session as seen by a specific caller
type SessionView struct {
	Session
	Current bool
}

// LoginKind tells how a login resolved its account
type LoginKind int

const (
	// LoginExisting means the address was already linked and authorized
	LoginExisting LoginKind = iota
	// LoginCreated means a new account was created for an unseen address
	LoginCreated
)

func (k LoginKind) String() string {
	if k == LoginCreated {
		return "created"
	}
	return "existing"
}

// LoginOutcome is the result of a successful login
type LoginOutcome struct {
	Kind    LoginKind
	Session Session
	Token   string
}

// RevokeResult is the result of a session revocation
type RevokeResult struct {
	Session Session
	// LoggedOut is set when the revoked session is the caller's own, the
	// client must discard its credential.
	LoggedOut bool
}

// Network is an entry of the chain directory
type Network struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// SyncKind names a portfolio ingestion job
type SyncKind string

const (
	SyncProtocols SyncKind = "protocols"
	SyncTokens    SyncKind = "tokens"
	SyncHistory   SyncKind = "history"
)

// Valid reports whether k is a known ingestion job
func (k SyncKind) Valid() bool {
	switch k {
	case SyncProtocols, SyncTokens, SyncHistory:
		return true
	}
	return false
}
