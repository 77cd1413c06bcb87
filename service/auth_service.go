package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/internal/ids"
	"github.com/layer-3/walletauth/metrics"
	"github.com/layer-3/walletauth/ports"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options tunes the AuthService
type Options struct {
	SessionTTL       time.Duration
	ChallengeTTL     time.Duration
	RequireChallenge bool   // reject the static login phrase
	LoginNetwork     string // network logins resolve addresses on

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func (o *Options) withDefaults() {
	if o.SessionTTL <= 0 {
		o.SessionTTL = 30 * 24 * time.Hour
	}
	if o.ChallengeTTL <= 0 {
		o.ChallengeTTL = 5 * time.Minute
	}
	if o.LoginNetwork == "" {
		o.LoginNetwork = "eth"
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// LoginRequest carries a wallet login attempt
type LoginRequest struct {
	Address   string
	Message   string
	Signature string
	// Challenge is the token from CreateChallenge, empty for the static phrase.
	Challenge string
}

// AuthService coordinates login, address authorization and session management
type AuthService struct {
	tokenizer ports.Tokenizer
	verifier  ports.SignatureVerifier
	registry  ports.Registry
	ledger    ports.ChallengeLedger
	eventPub  ports.EventPublisher
	networks  ports.NetworkDirectory
	sessions  *SessionManager

	opts    Options
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	verifier ports.SignatureVerifier,
	registry ports.Registry,
	sessions ports.SessionStore,
	ledger ports.ChallengeLedger,
	eventPub ports.EventPublisher,
	networks ports.NetworkDirectory,
	opts Options,
) *AuthService {
	opts.withDefaults()
	log := opts.Logger.Named("auth")
	return &AuthService{
		tokenizer: tokenizer,
		verifier:  verifier,
		registry:  registry,
		ledger:    ledger,
		eventPub:  eventPub,
		networks:  networks,
		sessions:  NewSessionManager(tokenizer, sessions, eventPub, opts.SessionTTL, opts.Metrics, log.Named("sessions")),
		opts:      opts,
		metrics:   opts.Metrics,
		log:       log,
	}
}

// Sessions exposes the session manager
func (s *AuthService) Sessions() *SessionManager {
	return s.sessions
}

// CreateChallenge issues a time-boxed login nonce and its signed token
func (s *AuthService) CreateChallenge(ctx context.Context) (core.Challenge, string, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return core.Challenge{}, "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	challenge := core.Challenge{
		ID:        ids.NewChallengeID(),
		Nonce:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.opts.ChallengeTTL),
	}

	token, err := s.tokenizer.ChallengeToToken(&challenge)
	if err != nil {
		return core.Challenge{}, "", fmt.Errorf("failed to create challenge token: %w", err)
	}

	s.metrics.ChallengesIssued.Inc()
	return challenge, token, nil
}

// Login verifies a signed login challenge, resolves or creates the account
// and issues a session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (core.LoginOutcome, error) {
	outcome, err := s.login(ctx, req)
	if err != nil {
		s.metrics.LoginsTotal.WithLabelValues(failureLabel(err)).Inc()
		s.log.Info("login rejected", zap.String("address", req.Address), zap.Error(err))
		return core.LoginOutcome{}, err
	}
	s.metrics.LoginsTotal.WithLabelValues(outcome.Kind.String()).Inc()
	s.log.Info("login",
		zap.String("address", outcome.Session.Address),
		zap.Int64("account_id", outcome.Session.AccountID),
		zap.Stringer("kind", outcome.Kind))
	return outcome, nil
}

func (s *AuthService) login(ctx context.Context, req LoginRequest) (core.LoginOutcome, error) {
	address, err := core.NormalizeAddress(req.Address)
	if err != nil {
		return core.LoginOutcome{}, err
	}

	challenge, err := s.loginChallenge(req)
	if err != nil {
		return core.LoginOutcome{}, err
	}

	if err := s.verify(req.Message, req.Signature, address); err != nil {
		return core.LoginOutcome{}, err
	}

	if challenge != nil {
		ttl := time.Until(challenge.ExpiresAt)
		if err := s.ledger.Consume(ctx, challenge.ID, ttl); err != nil {
			return core.LoginOutcome{}, err
		}
	}

	linked, kind, err := s.resolveLogin(ctx, address)
	if err != nil {
		return core.LoginOutcome{}, err
	}

	session, token, err := s.sessions.Issue(ctx, linked.AccountID, address)
	if err != nil {
		return core.LoginOutcome{}, err
	}
	return core.LoginOutcome{Kind: kind, Session: session, Token: token}, nil
}

// loginChallenge checks the signed message against the expected login text.
// It returns the decoded challenge when a nonce-bound one was used.
func (s *AuthService) loginChallenge(req LoginRequest) (*core.Challenge, error) {
	if req.Challenge == "" {
		if s.opts.RequireChallenge {
			return nil, fmt.Errorf("a login challenge is required: %w", core.ErrInvalidChallenge)
		}
		if req.Message != core.LoginMessage {
			return nil, fmt.Errorf("message is not the login challenge: %w", core.ErrInvalidChallenge)
		}
		return nil, nil
	}

	challenge, err := s.tokenizer.TokenToChallenge(req.Challenge)
	if err != nil {
		return nil, err
	}
	if req.Message != challenge.Message() {
		return nil, fmt.Errorf("message does not embed the challenge nonce: %w", core.ErrInvalidChallenge)
	}
	return challenge, nil
}

// resolveLogin finds the login record for address or creates a new account.
// An address already linked on another network belongs to an account and
// cannot log in until authorized on the login network. A lost creation race
// re-resolves the winner's record.
func (s *AuthService) resolveLogin(ctx context.Context, address string) (core.LinkedAddress, core.LoginKind, error) {
	network := s.opts.LoginNetwork
	for attempt := 0; attempt < 2; attempt++ {
		linked, err := s.registry.FindAddress(ctx, address, network)
		if err == nil {
			if !linked.CanAuth {
				return core.LinkedAddress{}, 0, core.ErrAddressNotAuthorized
			}
			return linked, core.LoginExisting, nil
		}
		if !errors.Is(err, core.ErrAddressNotFound) {
			return core.LinkedAddress{}, 0, fmt.Errorf("failed to resolve address: %w", err)
		}

		elsewhere, err := s.registry.FindByAddress(ctx, address)
		if err != nil {
			return core.LinkedAddress{}, 0, fmt.Errorf("failed to resolve address: %w", err)
		}
		if len(elsewhere) > 0 {
			return core.LinkedAddress{}, 0, core.ErrAddressNotAuthorized
		}

		_, created, err := s.registry.CreateAccount(ctx, address, network)
		if err == nil {
			s.log.Info("account created", zap.Int64("account_id", created.AccountID), zap.String("address", address))
			return created, core.LoginCreated, nil
		}
		if !errors.Is(err, core.ErrAlreadyLinked) {
			return core.LinkedAddress{}, 0, fmt.Errorf("failed to create account: %w", err)
		}
	}
	return core.LinkedAddress{}, 0, fmt.Errorf("failed to resolve address %s after a creation race", address)
}

// Verify checks that address signed message without issuing a session
func (s *AuthService) Verify(ctx context.Context, address, message, signature string) (string, error) {
	normalized, err := core.NormalizeAddress(address)
	if err != nil {
		return "", err
	}
	if err := s.verify(message, signature, normalized); err != nil {
		s.metrics.VerificationTotal.WithLabelValues("invalid").Inc()
		return "", err
	}
	s.metrics.VerificationTotal.WithLabelValues("valid").Inc()
	return normalized, nil
}

func (s *AuthService) verify(message, signature, claimed string) error {
	sig, err := eth.DecodeSignature(signature)
	if err != nil {
		return err
	}
	return s.verifier.Verify(message, sig, claimed)
}

// Authenticate resolves a bearer token to its active session
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (core.Session, error) {
	return s.sessions.Authenticate(ctx, bearer)
}

// Logout revokes the bearer's own session. It succeeds for revoked or
// expired sessions so clients can always discard their credential.
func (s *AuthService) Logout(ctx context.Context, bearer string) (core.RevokeResult, error) {
	claims, err := s.tokenizer.TokenToSession(bearer)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return core.RevokeResult{LoggedOut: true}, nil
		}
		return core.RevokeResult{}, err
	}

	result, err := s.sessions.Revoke(ctx, claims.AccountID, claims.ID, claims.ID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.RevokeResult{}, core.ErrInvalidToken
		}
		return core.RevokeResult{}, err
	}
	s.log.Info("logout", zap.String("session_id", claims.ID), zap.Int64("account_id", claims.AccountID))
	return result, nil
}

// ListSessions lists the caller's account sessions
func (s *AuthService) ListSessions(ctx context.Context, current core.Session) ([]core.SessionView, error) {
	return s.sessions.List(ctx, current.AccountID, current.ID)
}

// RevokeSession revokes one of the caller's account sessions
func (s *AuthService) RevokeSession(ctx context.Context, current core.Session, sessionID string) (core.RevokeResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return core.RevokeResult{}, core.ErrSessionNotFound
	}
	return s.sessions.Revoke(ctx, current.AccountID, sessionID, current.ID)
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, core.ErrSignatureMismatch), errors.Is(err, core.ErrMalformedSignature):
		return "bad_signature"
	case errors.Is(err, core.ErrAddressNotAuthorized):
		return "not_authorized"
	case errors.Is(err, core.ErrInvalidChallenge), errors.Is(err, core.ErrChallengeUsed):
		return "bad_challenge"
	case errors.Is(err, core.ErrInvalidAddress):
		return "bad_address"
	default:
		return "error"
	}
}
