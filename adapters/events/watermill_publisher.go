package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const (
	TopicSessionRevoked     = "walletauth.session.revoked"
	TopicAddressAuthChanged = "walletauth.address.auth_changed"
	TopicSyncRequested      = "walletauth.sync.requested"
)

// SessionRevokedEvent tells other instances to drop a session
type SessionRevokedEvent struct {
	SessionID string    `json:"session_id"`
	AccountID int64     `json:"account_id"`
	Address   string    `json:"address"`
	RevokedAt time.Time `json:"revoked_at"`
}

// AddressAuthChangedEvent reports a can_auth toggle
type AddressAuthChangedEvent struct {
	AccountID int64  `json:"account_id"`
	Address   string `json:"address"`
	NetworkID string `json:"network_id"`
	CanAuth   bool   `json:"can_auth"`
}

// SyncTarget is one address an ingestion job should fetch
type SyncTarget struct {
	Address   string `json:"address"`
	NetworkID string `json:"network_id"`
}

// SyncRequestedEvent asks the ingestion workers to refresh an account
type SyncRequestedEvent struct {
	AccountID int64        `json:"account_id"`
	Kind      string       `json:"kind"`
	Targets   []SyncTarget `json:"targets"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishSessionRevoked publishes a session revocation
func (p *WatermillPublisher) PublishSessionRevoked(ctx context.Context, session core.Session) error {
	return p.publish(ctx, TopicSessionRevoked, SessionRevokedEvent{
		SessionID: session.ID,
		AccountID: session.AccountID,
		Address:   session.Address,
		RevokedAt: time.Now().UTC(),
	})
}

// PublishAddressAuthChanged publishes a can_auth change
func (p *WatermillPublisher) PublishAddressAuthChanged(ctx context.Context, address core.LinkedAddress) error {
	return p.publish(ctx, TopicAddressAuthChanged, AddressAuthChangedEvent{
		AccountID: address.AccountID,
		Address:   address.Address,
		NetworkID: address.NetworkID,
		CanAuth:   address.CanAuth,
	})
}

// PublishSyncRequested publishes an ingestion request for the given addresses
func (p *WatermillPublisher) PublishSyncRequested(ctx context.Context, accountID int64, kind core.SyncKind, addresses []core.LinkedAddress) error {
	targets := make([]SyncTarget, 0, len(addresses))
	for _, a := range addresses {
		targets = append(targets, SyncTarget{Address: a.Address, NetworkID: a.NetworkID})
	}
	return p.publish(ctx, TopicSyncRequested, SyncRequestedEvent{
		AccountID: accountID,
		Kind:      string(kind),
		Targets:   targets,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}
