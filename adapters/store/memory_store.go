package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/ids"
)

type addressKey struct {
	address   string
	networkID string
}

// MemoryStore is an in-memory implementation of the Registry, SessionStore
// and ChallengeLedger ports. A single mutex serializes every mutation.
type MemoryStore struct {
	mu  sync.RWMutex
	ids *ids.Generator
	now func() time.Time

	accounts  map[int64]core.Account
	addresses []core.LinkedAddress // creation order
	byKey     map[addressKey]int   // index into addresses

	sessions  map[string]core.Session
	byAccount map[int64][]string // session ids in creation order

	consumed map[string]time.Time // challenge id -> forget after
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(gen *ids.Generator) *MemoryStore {
	return &MemoryStore{
		ids:       gen,
		now:       time.Now,
		accounts:  make(map[int64]core.Account),
		byKey:     make(map[addressKey]int),
		sessions:  make(map[string]core.Session),
		byAccount: make(map[int64][]string),
		consumed:  make(map[string]time.Time),
	}
}

// CreateAccount creates an account owning address with can_auth set.
// An address linked on any network already has an owner.
func (s *MemoryStore) CreateAccount(ctx context.Context, address, networkID string) (core.Account, core.LinkedAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.findLocked(address)) > 0 {
		return core.Account{}, core.LinkedAddress{}, core.ErrAlreadyLinked
	}

	now := s.now()
	account := core.Account{ID: s.ids.NextID(), CreatedAt: now}
	s.accounts[account.ID] = account

	addr := s.insertLocked(account.ID, address, networkID, true, now)
	return account, addr, nil
}

// LinkAddress links address to the account with can_auth unset
func (s *MemoryStore) LinkAddress(ctx context.Context, accountID int64, address, networkID string) (core.LinkedAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return core.LinkedAddress{}, core.ErrAccountNotFound
	}
	if _, exists := s.byKey[addressKey{address, networkID}]; exists {
		return core.LinkedAddress{}, core.ErrAlreadyLinked
	}

	return s.insertLocked(accountID, address, networkID, false, s.now()), nil
}

func (s *MemoryStore) insertLocked(accountID int64, address, networkID string, canAuth bool, now time.Time) core.LinkedAddress {
	addr := core.LinkedAddress{
		ID:        s.ids.NextID(),
		AccountID: accountID,
		Address:   address,
		NetworkID: networkID,
		CanAuth:   canAuth,
		CreatedAt: now,
	}
	s.byKey[addressKey{address, networkID}] = len(s.addresses)
	s.addresses = append(s.addresses, addr)
	return addr
}

// ListAddresses returns the account's addresses in creation order
func (s *MemoryStore) ListAddresses(ctx context.Context, accountID int64) ([]core.LinkedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listLocked(accountID), nil
}

func (s *MemoryStore) listLocked(accountID int64) []core.LinkedAddress {
	out := []core.LinkedAddress{}
	for _, a := range s.addresses {
		if a.AccountID == accountID {
			out = append(out, a)
		}
	}
	return out
}

// FindAddress returns the record for (address, network)
func (s *MemoryStore) FindAddress(ctx context.Context, address, networkID string) (core.LinkedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byKey[addressKey{address, networkID}]
	if !ok {
		return core.LinkedAddress{}, core.ErrAddressNotFound
	}
	return s.addresses[idx], nil
}

// FindByAddress returns every record of address across networks
func (s *MemoryStore) FindByAddress(ctx context.Context, address string) ([]core.LinkedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findLocked(address), nil
}

func (s *MemoryStore) findLocked(address string) []core.LinkedAddress {
	out := []core.LinkedAddress{}
	for _, a := range s.addresses {
		if a.Address == address {
			out = append(out, a)
		}
	}
	return out
}

// SetCanAuth flips can_auth on the account's records of address
func (s *MemoryStore) SetCanAuth(ctx context.Context, accountID int64, address string, enable bool, loginNetwork string) ([]core.LinkedAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	after := s.listLocked(accountID)
	var idx []int
	for i := range after {
		if after[i].Address == address {
			after[i].CanAuth = enable
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, core.ErrAddressNotFound
	}
	if !enable {
		if err := core.EnsureAuthRemains(after, loginNetwork); err != nil {
			return nil, err
		}
	}

	updated := make([]core.LinkedAddress, 0, len(idx))
	for _, i := range idx {
		a := after[i]
		s.addresses[s.byKey[addressKey{a.Address, a.NetworkID}]] = a
		updated = append(updated, a)
	}
	return updated, nil
}

// Put stores a session
func (s *MemoryStore) Put(ctx context.Context, session core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		s.byAccount[session.AccountID] = append(s.byAccount[session.AccountID], session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

// Get returns a session by id
func (s *MemoryStore) Get(ctx context.Context, id string) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return core.Session{}, core.ErrSessionNotFound
	}
	return session, nil
}

// ListByAccount returns the account's sessions in creation order
func (s *MemoryStore) ListByAccount(ctx context.Context, accountID int64) ([]core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Session, 0, len(s.byAccount[accountID]))
	for _, id := range s.byAccount[accountID] {
		out = append(out, s.sessions[id])
	}
	return out, nil
}

// MarkRevoked deactivates a session owned by accountID
func (s *MemoryStore) MarkRevoked(ctx context.Context, accountID int64, id string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.AccountID != accountID {
		return core.Session{}, core.ErrSessionNotFound
	}
	session.Active = false
	s.sessions[id] = session
	return session, nil
}

// Consume marks a challenge as used
func (s *MemoryStore) Consume(ctx context.Context, challengeID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, until := range s.consumed {
		if now.After(until) {
			delete(s.consumed, id)
		}
	}

	if _, used := s.consumed[challengeID]; used {
		return core.ErrChallengeUsed
	}
	s.consumed[challengeID] = now.Add(ttl)
	return nil
}
