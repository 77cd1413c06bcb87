package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/subcommands"
	"github.com/layer-3/walletauth"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/eth"
)

var commands = []subcommands.Command{
	&keygenCmd{},
	&walletCmd{},
	&signCmd{},
	&loginCmd{},
}

type keygenCmd struct {
	out string
}

func (*keygenCmd) Name() string     { return "keygen" }
func (*keygenCmd) Synopsis() string { return "generate a P-256 key for JWT_SIGNING_KEY_FILE" }
func (*keygenCmd) Usage() string {
	return `keygen [-o <file>]

  Writes a PEM encoded EC private key used to sign session tokens (ES256).
`
}

func (c *keygenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "Output file (defaults to stdout)")
}

func (c *keygenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	key, err := tokenizer.GenerateSigningKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		return subcommands.ExitFailure
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding key: %v\n", err)
		return subcommands.ExitFailure
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	if c.out == "" {
		os.Stdout.Write(block)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(c.out, block, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", c.out, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type walletCmd struct{}

func (*walletCmd) Name() string     { return "wallet" }
func (*walletCmd) Synopsis() string { return "create a throwaway wallet key for testing" }
func (*walletCmd) Usage() string {
	return `wallet

  Prints a new secp256k1 private key (hex) and its address.
`
}

func (*walletCmd) SetFlags(*flag.FlagSet) {}

func (*walletCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating wallet: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("private_key: %s\naddress:     %s\n",
		hexutil.Encode(crypto.FromECDSA(key)),
		crypto.PubkeyToAddress(key.PublicKey).Hex())
	return subcommands.ExitSuccess
}

func loadWallet(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		hexKey = os.Getenv("WALLET_KEY")
	}
	if hexKey == "" {
		return nil, fmt.Errorf("a wallet key is required (-key or WALLET_KEY)")
	}
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}

type signCmd struct {
	key       string
	message   string
	authorize string
}

func (*signCmd) Name() string     { return "sign" }
func (*signCmd) Synopsis() string { return "personal-sign a message like a browser wallet" }
func (*signCmd) Usage() string {
	return `sign -key <hex> [-m <message> | -authorize <address>]

  Signs the login message by default, the given message with -m, or the
  authorization phrase for an address with -authorize.
`
}

func (c *signCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.key, "key", "", "Wallet private key in hex (or WALLET_KEY)")
	f.StringVar(&c.message, "m", "", "Message to sign")
	f.StringVar(&c.authorize, "authorize", "", "Sign the authorization phrase for this address")
}

func (c *signCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.message != "" && c.authorize != "" {
		fmt.Fprintln(os.Stderr, "Error: -m and -authorize are exclusive.")
		return subcommands.ExitUsageError
	}
	key, err := loadWallet(c.key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	msg := core.LoginMessage
	switch {
	case c.message != "":
		msg = c.message
	case c.authorize != "":
		addr, err := core.NormalizeAddress(c.authorize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		msg = core.AuthorizationMessage(addr)
	}

	sig, err := eth.SignMessage(key, []byte(msg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing: %v\n", err)
		return subcommands.ExitFailure
	}
	return printJSON(map[string]string{
		"address":   strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
		"message":   msg,
		"signature": hexutil.Encode(sig),
	})
}

type loginCmd struct {
	url    string
	key    string
	static bool
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in to a walletauth server and print the bearer token" }
func (*loginCmd) Usage() string {
	return `login -key <hex> [-url <server>] [-static]

  Requests a challenge, signs it and logs in. -static signs the fixed
  login phrase instead of a challenge.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.url, "url", "http://localhost:8111", "Server base URL")
	f.StringVar(&c.key, "key", "", "Wallet private key in hex (or WALLET_KEY)")
	f.BoolVar(&c.static, "static", false, "Sign the static login phrase")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	key, err := loadWallet(c.key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	client := walletauth.NewClient(c.url, nil)

	req := walletauth.LoginRequest{
		Address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
		Message: core.LoginMessage,
	}
	if !c.static {
		ch, err := client.Challenge(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error requesting challenge: %v\n", err)
			return subcommands.ExitFailure
		}
		req.Message, req.Challenge = ch.Message, ch.Token
	}

	sig, err := eth.SignMessage(key, []byte(req.Message))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing: %v\n", err)
		return subcommands.ExitFailure
	}
	req.Signature = hexutil.Encode(sig)

	out, err := client.Login(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error logging in: %v\n", err)
		return subcommands.ExitFailure
	}
	return printJSON(out)
}

func printJSON(v interface{}) subcommands.ExitStatus {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
