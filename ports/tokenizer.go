package ports

import "github.com/layer-3/walletauth/core"

// Tokenizer converts between domain objects and tokens
type Tokenizer interface {
	// Challenge token operations
	ChallengeToToken(challenge *core.Challenge) (string, error)
	TokenToChallenge(token string) (*core.Challenge, error)

	// Session token operations. TokenToSession only checks the token itself,
	// the session store decides whether it is still active.
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}

// SignatureVerifier recovers the signer of a personal-signed message
type SignatureVerifier interface {
	Recover(message string, signature []byte) (string, error)

	// Verify returns core.ErrSignatureMismatch unless claimed signed message.
	Verify(message string, signature []byte, claimed string) error
}

// NetworkDirectory resolves chain ids
type NetworkDirectory interface {
	Lookup(id string) (core.Network, bool)
	List() []core.Network
}
