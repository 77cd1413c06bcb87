package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const AudienceChallenge = "walletauth:challenge"
const AudienceSession = "walletauth:session"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey, issuer: issuer}
}

// LoadSigningKey reads a PEM encoded P-256 key. An empty path generates an
// ephemeral key, tokens then do not survive a restart.
func LoadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return GenerateSigningKey()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, nil
}

// GenerateSigningKey creates a new P-256 key for ES256
func GenerateSigningKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

func (j *JWTTokenizer) keyFunc(token *jwt.Token) (interface{}, error) {
	// Validate the signing method
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return &j.signKey.PublicKey, nil
}

// ChallengeToToken converts a Challenge to a JWT token
func (j *JWTTokenizer) ChallengeToToken(challenge *core.Challenge) (string, error) {
	claims := ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			ID:        challenge.ID,
			ExpiresAt: jwt.NewNumericDate(challenge.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(challenge.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceChallenge},
		},
		Nonce: challenge.Nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge token: %w", err)
	}

	return signedToken, nil
}

// TokenToChallenge converts a JWT token to a Challenge
func (j *JWTTokenizer) TokenToChallenge(tokenStr string) (*core.Challenge, error) {
	claims := &ChallengeClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, j.keyFunc,
		jwt.WithAudience(AudienceChallenge),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("challenge expired: %w", core.ErrInvalidChallenge)
		}
		return nil, fmt.Errorf("failed to parse challenge: %w", core.ErrInvalidChallenge)
	}
	if !token.Valid || claims.ID == "" || claims.Nonce == "" {
		return nil, core.ErrInvalidChallenge
	}

	challenge := &core.Challenge{
		ID:        claims.ID,
		Nonce:     claims.Nonce,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		challenge.IssuedAt = claims.IssuedAt.Time
	}
	return challenge, nil
}

// SessionToToken converts a Session to a bearer JWT
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   strconv.FormatInt(session.AccountID, 10),
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Address: session.Address,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession parses a bearer JWT. The returned session carries only the
// token claims and is marked active; revocation is the store's concern.
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, j.keyFunc,
		jwt.WithAudience(AudienceSession),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse token: %w", core.ErrInvalidToken)
	}
	if !token.Valid || claims.ID == "" {
		return nil, core.ErrInvalidToken
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", core.ErrInvalidToken)
	}

	session := &core.Session{
		ID:        claims.ID,
		AccountID: accountID,
		Address:   claims.Address,
		ExpiresAt: claims.ExpiresAt.Time,
		Active:    true,
	}
	if claims.IssuedAt != nil {
		session.CreatedAt = claims.IssuedAt.Time
	}
	return session, nil
}
