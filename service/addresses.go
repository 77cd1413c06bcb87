package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/walletauth/core"
	"go.uber.org/zap"
)

// SetAuthRequest toggles whether an address may log in. Enabling needs a
// signature by the address over core.AuthorizationMessage.
type SetAuthRequest struct {
	Address   string
	Enable    bool
	Message   string
	Signature string
}

// requireAuthorized rejects sessions whose authorizing address lost can_auth
// after the session was issued.
func (s *AuthService) requireAuthorized(ctx context.Context, current core.Session) error {
	linked, err := s.registry.FindAddress(ctx, current.Address, s.opts.LoginNetwork)
	if err != nil {
		if errors.Is(err, core.ErrAddressNotFound) {
			return core.ErrAddressNotAuthorized
		}
		return fmt.Errorf("failed to check session address: %w", err)
	}
	if linked.AccountID != current.AccountID || !linked.CanAuth {
		return core.ErrAddressNotAuthorized
	}
	return nil
}

// ListAddresses returns the caller's linked addresses in creation order
func (s *AuthService) ListAddresses(ctx context.Context, current core.Session) ([]core.LinkedAddress, error) {
	addrs, err := s.registry.ListAddresses(ctx, current.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addrs, nil
}

// LinkAddress links a new address to the caller's account with can_auth unset.
// An empty network means the login network.
func (s *AuthService) LinkAddress(ctx context.Context, current core.Session, address, networkID string) (core.LinkedAddress, error) {
	normalized, err := core.NormalizeAddress(address)
	if err != nil {
		return core.LinkedAddress{}, err
	}
	if networkID == "" {
		networkID = s.opts.LoginNetwork
	}
	if _, ok := s.networks.Lookup(networkID); !ok {
		return core.LinkedAddress{}, core.ErrInvalidNetwork
	}
	if err := s.requireAuthorized(ctx, current); err != nil {
		return core.LinkedAddress{}, err
	}

	linked, err := s.registry.LinkAddress(ctx, current.AccountID, normalized, networkID)
	if err != nil {
		return core.LinkedAddress{}, err
	}

	s.metrics.AddressesLinked.Inc()
	s.log.Info("address linked",
		zap.Int64("account_id", current.AccountID),
		zap.String("address", normalized),
		zap.String("network", networkID))
	return linked, nil
}

// SetAddressAuth enables or disables login with an address on every network
// it is linked on. It returns the updated records.
func (s *AuthService) SetAddressAuth(ctx context.Context, current core.Session, req SetAuthRequest) ([]core.LinkedAddress, error) {
	address, err := core.NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthorized(ctx, current); err != nil {
		return nil, err
	}

	if req.Enable {
		if req.Signature == "" || !core.IsAuthorizationMessage(req.Message, address) {
			return nil, core.ErrInvalidProof
		}
		if err := s.verify(req.Message, req.Signature, address); err != nil {
			return nil, err
		}
	} else if err := s.checkDisable(ctx, current, address); err != nil {
		return nil, err
	}

	updated, err := s.registry.SetCanAuth(ctx, current.AccountID, address, req.Enable, s.opts.LoginNetwork)
	if err != nil {
		return nil, err
	}

	direction := "disable"
	if req.Enable {
		direction = "enable"
	}
	s.metrics.AddressAuthChanges.WithLabelValues(direction).Inc()
	s.log.Info("address auth changed",
		zap.Int64("account_id", current.AccountID),
		zap.String("address", address),
		zap.Bool("can_auth", req.Enable))

	for _, a := range updated {
		if err := s.eventPub.PublishAddressAuthChanged(ctx, a); err != nil {
			s.log.Warn("failed to publish address auth event", zap.String("address", a.Address), zap.Error(err))
		}
	}
	return updated, nil
}

// checkDisable reports why address cannot be disabled. The lockout guard
// is reported before the current-session guard; the store re-checks the
// lockout guard atomically.
func (s *AuthService) checkDisable(ctx context.Context, current core.Session, address string) error {
	addrs, err := s.registry.ListAddresses(ctx, current.AccountID)
	if err != nil {
		return fmt.Errorf("failed to list addresses: %w", err)
	}

	found := false
	for i := range addrs {
		if addrs[i].Address == address {
			addrs[i].CanAuth = false
			found = true
		}
	}
	if !found {
		return core.ErrAddressNotFound
	}
	if err := core.EnsureAuthRemains(addrs, s.opts.LoginNetwork); err != nil {
		return err
	}
	if address == current.Address {
		return core.ErrCannotDisableCurrent
	}
	return nil
}

// RequestSync asks the ingestion workers to refresh the caller's portfolio
func (s *AuthService) RequestSync(ctx context.Context, current core.Session, kind core.SyncKind) error {
	if !kind.Valid() {
		return core.ErrInvalidSyncRequest
	}

	addrs, err := s.registry.ListAddresses(ctx, current.AccountID)
	if err != nil {
		return fmt.Errorf("failed to list addresses: %w", err)
	}
	if err := s.eventPub.PublishSyncRequested(ctx, current.AccountID, kind, addrs); err != nil {
		return fmt.Errorf("failed to request sync: %w", err)
	}

	s.metrics.SyncRequests.WithLabelValues(string(kind)).Inc()
	return nil
}

// Networks returns the chain directory sorted by name
func (s *AuthService) Networks() []core.Network {
	return s.networks.List()
}
