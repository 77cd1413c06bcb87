package ports

import (
	"context"

	"github.com/layer-3/walletauth/core"
)

// EventPublisher publishes events to notify other instances and the ingestion workers
type EventPublisher interface {
	PublishSessionRevoked(ctx context.Context, session core.Session) error
	PublishAddressAuthChanged(ctx context.Context, address core.LinkedAddress) error
	PublishSyncRequested(ctx context.Context, accountID int64, kind core.SyncKind, addresses []core.LinkedAddress) error
}
