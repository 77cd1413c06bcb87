package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (w wallet) enable(t *testing.T, svc *AuthService, current core.Session) ([]core.LinkedAddress, error) {
	t.Helper()
	msg := core.AuthorizationMessage(w.address)
	return svc.SetAddressAuth(context.Background(), current, SetAuthRequest{
		Address:   w.address,
		Enable:    true,
		Message:   msg,
		Signature: w.sign(t, msg),
	})
}

func TestLinkAddress(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	ctx := context.Background()
	sa := a.login(t, f.svc)

	linked, err := f.svc.LinkAddress(ctx, sa.Session, common.HexToAddress(b.address).Hex(), "")
	require.NoError(t, err)
	assert.Equal(t, b.address, linked.Address)
	assert.Equal(t, "eth", linked.NetworkID)
	assert.False(t, linked.CanAuth)

	_, err = f.svc.LinkAddress(ctx, sa.Session, b.address, "eth")
	assert.ErrorIs(t, err, core.ErrAlreadyLinked)

	onBSC, err := f.svc.LinkAddress(ctx, sa.Session, b.address, "bsc")
	require.NoError(t, err)
	assert.Equal(t, "bsc", onBSC.NetworkID)

	_, err = f.svc.LinkAddress(ctx, sa.Session, b.address, "not-a-chain")
	assert.ErrorIs(t, err, core.ErrInvalidNetwork)

	_, err = f.svc.LinkAddress(ctx, sa.Session, "0x123", "eth")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)

	addrs, err := f.svc.ListAddresses(ctx, sa.Session)
	require.NoError(t, err)
	require.Len(t, addrs, 3)
	assert.Equal(t, []string{a.address, b.address, b.address}, []string{addrs[0].Address, addrs[1].Address, addrs[2].Address})
}

func TestLinkAddressOwnedByAnotherAccount(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	sa := a.login(t, f.svc)
	b.login(t, f.svc)

	_, err := f.svc.LinkAddress(context.Background(), sa.Session, b.address, "eth")
	assert.ErrorIs(t, err, core.ErrAlreadyLinked)
}

func TestLinkedAddressCannotLoginUntilEnabled(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	ctx := context.Background()
	sa := a.login(t, f.svc)

	_, err := f.svc.LinkAddress(ctx, sa.Session, b.address, "eth")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginRequest{Address: b.address, Message: core.LoginMessage, Signature: b.sign(t, core.LoginMessage)})
	assert.ErrorIs(t, err, core.ErrAddressNotAuthorized)

	_, err = b.enable(t, f.svc, sa.Session)
	require.NoError(t, err)

	sb := b.login(t, f.svc)
	assert.Equal(t, core.LoginExisting, sb.Kind)
	assert.Equal(t, sa.Session.AccountID, sb.Session.AccountID)
}

func TestAddressLinkedOnAnotherNetworkCannotOpenAccount(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	ctx := context.Background()
	sa := a.login(t, f.svc)

	_, err := f.svc.LinkAddress(ctx, sa.Session, b.address, "bsc")
	require.NoError(t, err)

	login := LoginRequest{Address: b.address, Message: core.LoginMessage, Signature: b.sign(t, core.LoginMessage)}
	_, err = f.svc.Login(ctx, login)
	assert.ErrorIs(t, err, core.ErrAddressNotAuthorized)

	// authorized on bsc only, still no login on the login network
	_, err = b.enable(t, f.svc, sa.Session)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, login)
	assert.ErrorIs(t, err, core.ErrAddressNotAuthorized)

	owned, err := f.store.FindByAddress(ctx, b.address)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, sa.Session.AccountID, owned[0].AccountID)
}

func TestConcurrentDisablesKeepLoginAddress(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		a, c, b := newWallet(t), newWallet(t), newWallet(t)
		sa := a.login(t, f.svc)
		_, err := f.svc.LinkAddress(ctx, sa.Session, c.address, "eth")
		require.NoError(t, err)
		_, err = c.enable(t, f.svc, sa.Session)
		require.NoError(t, err)
		sc := c.login(t, f.svc)

		// an authorized record off the login network must not count
		_, err = f.svc.LinkAddress(ctx, sa.Session, b.address, "bsc")
		require.NoError(t, err)
		_, err = b.enable(t, f.svc, sa.Session)
		require.NoError(t, err)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{Address: c.address})
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = f.svc.SetAddressAuth(ctx, sc.Session, SetAuthRequest{Address: a.address})
		}()
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, succeeded)

		canLogin := 0
		for _, w := range []wallet{a, c} {
			_, err := f.svc.Login(ctx, LoginRequest{Address: w.address, Message: core.LoginMessage, Signature: w.sign(t, core.LoginMessage)})
			if err == nil {
				canLogin++
			} else {
				assert.ErrorIs(t, err, core.ErrAddressNotAuthorized)
			}
		}
		assert.Equal(t, 1, canLogin, "one login address must survive")
	}
}

func TestEnableRequiresAddressProof(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	ctx := context.Background()
	sa := a.login(t, f.svc)
	_, err := f.svc.LinkAddress(ctx, sa.Session, b.address, "eth")
	require.NoError(t, err)

	_, err = f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{Address: b.address, Enable: true})
	assert.ErrorIs(t, err, core.ErrInvalidProof)

	// a login signature cannot be replayed as an authorization
	_, err = f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{
		Address:   b.address,
		Enable:    true,
		Message:   core.LoginMessage,
		Signature: b.sign(t, core.LoginMessage),
	})
	assert.ErrorIs(t, err, core.ErrInvalidProof)

	// the phrase must name the target address
	wrong := core.AuthorizationMessage(a.address)
	_, err = f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{Address: b.address, Enable: true, Message: wrong, Signature: b.sign(t, wrong)})
	assert.ErrorIs(t, err, core.ErrInvalidProof)

	// signed by someone else
	msg := core.AuthorizationMessage(b.address)
	_, err = f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{Address: b.address, Enable: true, Message: msg, Signature: a.sign(t, msg)})
	assert.ErrorIs(t, err, core.ErrSignatureMismatch)

	// checksummed phrase is accepted
	checksummed := core.AuthorizationMessage(common.HexToAddress(b.address).Hex())
	updated, err := f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{Address: b.address, Enable: true, Message: checksummed, Signature: b.sign(t, checksummed)})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.True(t, updated[0].CanAuth)
}

func TestSetAuthUnknownAddress(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	sa := a.login(t, f.svc)

	_, err := f.svc.SetAddressAuth(context.Background(), sa.Session, SetAuthRequest{Address: b.address})
	assert.ErrorIs(t, err, core.ErrAddressNotFound)

	_, err = b.enable(t, f.svc, sa.Session)
	assert.ErrorIs(t, err, core.ErrAddressNotFound)
}

func TestDisableGuards(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	ctx := context.Background()
	sa := a.login(t, f.svc)

	_, err := f.svc.LinkAddress(ctx, sa.Session, b.address, "eth")
	require.NoError(t, err)

	_, err = f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{Address: a.address})
	assert.ErrorIs(t, err, core.ErrLastAuthAddress)

	_, err = b.enable(t, f.svc, sa.Session)
	require.NoError(t, err)

	_, err = f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{Address: a.address})
	assert.ErrorIs(t, err, core.ErrCannotDisableCurrent)

	updated, err := f.svc.SetAddressAuth(ctx, sa.Session, SetAuthRequest{Address: b.address})
	require.NoError(t, err)
	assert.False(t, updated[0].CanAuth)
}

func TestAddressAuthChangedEvent(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	ctx := context.Background()

	msgs, err := f.pubsub.Subscribe(ctx, events.TopicAddressAuthChanged)
	require.NoError(t, err)

	sa := a.login(t, f.svc)
	_, err = f.svc.LinkAddress(ctx, sa.Session, b.address, "eth")
	require.NoError(t, err)
	_, err = b.enable(t, f.svc, sa.Session)
	require.NoError(t, err)

	var ev events.AddressAuthChangedEvent
	require.NoError(t, json.Unmarshal(nextMessage(t, msgs).Payload, &ev))
	assert.Equal(t, b.address, ev.Address)
	assert.True(t, ev.CanAuth)
	assert.Equal(t, sa.Session.AccountID, ev.AccountID)
}

func TestRequestSync(t *testing.T) {
	f := newFixture(t, Options{})
	a, b := newWallet(t), newWallet(t)
	ctx := context.Background()

	msgs, err := f.pubsub.Subscribe(ctx, events.TopicSyncRequested)
	require.NoError(t, err)

	sa := a.login(t, f.svc)
	_, err = f.svc.LinkAddress(ctx, sa.Session, b.address, "bsc")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.RequestSync(ctx, sa.Session, core.SyncKind("nfts")), core.ErrInvalidSyncRequest)
	require.NoError(t, f.svc.RequestSync(ctx, sa.Session, core.SyncTokens))

	var ev events.SyncRequestedEvent
	require.NoError(t, json.Unmarshal(nextMessage(t, msgs).Payload, &ev))
	assert.Equal(t, "tokens", ev.Kind)
	assert.Equal(t, []events.SyncTarget{
		{Address: a.address, NetworkID: "eth"},
		{Address: b.address, NetworkID: "bsc"},
	}, ev.Targets)
}

func TestNetworks(t *testing.T) {
	f := newFixture(t, Options{})
	list := f.svc.Networks()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, strings.ToLower(list[i-1].Name), strings.ToLower(list[i].Name))
	}
}

// Walks the full multi-address lifecycle: bootstrap, link, lockout guard,
// hand-over to a second address and the stale first session.
func TestAddressHandOverScenario(t *testing.T) {
	f := newFixture(t, Options{})
	aaa, bbb := newWallet(t), newWallet(t)
	ctx := context.Background()

	first := aaa.login(t, f.svc)
	require.Equal(t, core.LoginCreated, first.Kind)
	sa, err := f.svc.Authenticate(ctx, first.Token)
	require.NoError(t, err)

	linked, err := f.svc.LinkAddress(ctx, sa, bbb.address, "eth")
	require.NoError(t, err)
	require.False(t, linked.CanAuth)

	_, err = f.svc.SetAddressAuth(ctx, sa, SetAuthRequest{Address: aaa.address})
	require.ErrorIs(t, err, core.ErrLastAuthAddress)

	_, err = bbb.enable(t, f.svc, sa)
	require.NoError(t, err)

	second := bbb.login(t, f.svc)
	require.Equal(t, core.LoginExisting, second.Kind)
	sb, err := f.svc.Authenticate(ctx, second.Token)
	require.NoError(t, err)

	_, err = f.svc.SetAddressAuth(ctx, sb, SetAuthRequest{Address: aaa.address})
	require.NoError(t, err)

	// the stale session still authenticates and manages sessions
	stale, err := f.svc.Authenticate(ctx, first.Token)
	require.NoError(t, err)
	views, err := f.svc.ListSessions(ctx, stale)
	require.NoError(t, err)
	assert.Len(t, views, 2)

	// but cannot change the registry
	_, err = f.svc.LinkAddress(ctx, stale, newWallet(t).address, "eth")
	assert.ErrorIs(t, err, core.ErrAddressNotAuthorized)

	res, err := f.svc.RevokeSession(ctx, sb, stale.ID)
	require.NoError(t, err)
	assert.False(t, res.Session.Active)

	_, err = f.svc.Login(ctx, LoginRequest{Address: aaa.address, Message: core.LoginMessage, Signature: aaa.sign(t, core.LoginMessage)})
	assert.ErrorIs(t, err, core.ErrAddressNotAuthorized)
}
