package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletauth/core"
)

// Registry stores accounts and their linked addresses. Implementations must
// serialize mutations per account and enforce (address, network) uniqueness.
type Registry interface {
	// CreateAccount atomically creates an account owning address with can_auth set.
	// Returns core.ErrAlreadyLinked when the address is linked on any network.
	CreateAccount(ctx context.Context, address, networkID string) (core.Account, core.LinkedAddress, error)

	// LinkAddress links address to the account with can_auth unset.
	LinkAddress(ctx context.Context, accountID int64, address, networkID string) (core.LinkedAddress, error)

	// ListAddresses returns the account's addresses in creation order.
	ListAddresses(ctx context.Context, accountID int64) ([]core.LinkedAddress, error)

	// FindAddress returns the record for (address, network) or core.ErrAddressNotFound.
	FindAddress(ctx context.Context, address, networkID string) (core.LinkedAddress, error)

	// FindByAddress returns every record of address across networks in creation order.
	FindByAddress(ctx context.Context, address string) ([]core.LinkedAddress, error)

	// SetCanAuth sets can_auth on every record of address owned by the account
	// and returns the updated records. The change is rejected with
	// core.ErrLastAuthAddress when it would leave no can_auth record on loginNetwork.
	SetCanAuth(ctx context.Context, accountID int64, address string, enable bool, loginNetwork string) ([]core.LinkedAddress, error)
}

// SessionStore persists issued sessions
type SessionStore interface {
	Put(ctx context.Context, session core.Session) error

	// Get returns the session or core.ErrSessionNotFound.
	Get(ctx context.Context, id string) (core.Session, error)

	// ListByAccount returns the account's sessions in creation order.
	ListByAccount(ctx context.Context, accountID int64) ([]core.Session, error)

	// MarkRevoked deactivates a session owned by accountID. Revoking an
	// inactive session succeeds. Returns core.ErrSessionNotFound when the
	// session does not exist or belongs to another account.
	MarkRevoked(ctx context.Context, accountID int64, id string) (core.Session, error)
}

// ChallengeLedger records consumed login challenges
type ChallengeLedger interface {
	// Consume marks the challenge as used for ttl. It returns
	// core.ErrChallengeUsed when it was consumed before.
	Consume(ctx context.Context, challengeID string, ttl time.Duration) error
}
