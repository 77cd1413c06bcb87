package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/ids"
	"github.com/layer-3/walletauth/metrics"
	"github.com/layer-3/walletauth/ports"
	"go.uber.org/zap"
)

// SessionManager issues, authenticates, lists and revokes bearer sessions
type SessionManager struct {
	tokenizer ports.Tokenizer
	store     ports.SessionStore
	eventPub  ports.EventPublisher
	metrics   *metrics.Metrics
	log       *zap.Logger

	ttl time.Duration
	now func() time.Time
}

// NewSessionManager creates a new session manager
func NewSessionManager(
	tokenizer ports.Tokenizer,
	store ports.SessionStore,
	eventPub ports.EventPublisher,
	ttl time.Duration,
	m *metrics.Metrics,
	log *zap.Logger,
) *SessionManager {
	return &SessionManager{
		tokenizer: tokenizer,
		store:     store,
		eventPub:  eventPub,
		metrics:   m,
		log:       log,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue creates an active session bound to (account, address) and its bearer token
func (m *SessionManager) Issue(ctx context.Context, accountID int64, address string) (core.Session, string, error) {
	now := m.now().UTC().Truncate(time.Second)
	session := core.Session{
		ID:        ids.NewSessionID(),
		AccountID: accountID,
		Address:   address,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		Active:    true,
	}

	token, err := m.tokenizer.SessionToToken(&session)
	if err != nil {
		return core.Session{}, "", fmt.Errorf("failed to create session token: %w", err)
	}
	if err := m.store.Put(ctx, session); err != nil {
		return core.Session{}, "", fmt.Errorf("failed to store session: %w", err)
	}

	m.metrics.SessionsIssued.Inc()
	m.log.Debug("session issued",
		zap.String("session_id", session.ID),
		zap.Int64("account_id", accountID),
		zap.String("address", address))
	return session, token, nil
}

// Authenticate validates a bearer token and returns its stored session.
// Signature and expiry come from the token, activity from the store.
func (m *SessionManager) Authenticate(ctx context.Context, bearer string) (core.Session, error) {
	claims, err := m.tokenizer.TokenToSession(bearer)
	if err != nil {
		return core.Session{}, err
	}

	session, err := m.store.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.Session{}, core.ErrInvalidToken
		}
		return core.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if session.AccountID != claims.AccountID {
		return core.Session{}, core.ErrInvalidToken
	}
	if !session.Active {
		return core.Session{}, core.ErrSessionRevoked
	}
	return session, nil
}

// List returns the account's sessions in creation order, flagging currentID
func (m *SessionManager) List(ctx context.Context, accountID int64, currentID string) ([]core.SessionView, error) {
	sessions, err := m.store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	views := make([]core.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, core.SessionView{Session: s, Current: s.ID == currentID})
	}
	return views, nil
}

// Revoke deactivates one of the account's sessions. Revoking a revoked
// session succeeds. LoggedOut is set when sessionID is currentID.
func (m *SessionManager) Revoke(ctx context.Context, accountID int64, sessionID, currentID string) (core.RevokeResult, error) {
	session, err := m.store.MarkRevoked(ctx, accountID, sessionID)
	if err != nil {
		return core.RevokeResult{}, err
	}

	loggedOut := sessionID == currentID
	reason := "revoke"
	if loggedOut {
		reason = "logout"
	}
	m.metrics.SessionsRevoked.WithLabelValues(reason).Inc()

	if err := m.eventPub.PublishSessionRevoked(ctx, session); err != nil {
		// The store already holds the revocation, the event only informs other instances.
		m.log.Warn("failed to publish session revoked event", zap.String("session_id", sessionID), zap.Error(err))
	}

	return core.RevokeResult{Session: session, LoggedOut: loggedOut}, nil
}
