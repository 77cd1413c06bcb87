package walletauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient talks to a walletauth server over HTTP
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. A nil httpClient
// uses a client with a 15s timeout.
func NewClient(baseURL string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Detail = payload.Detail
		}
		if apiErr.Detail == "" {
			apiErr.Detail = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) Challenge(ctx context.Context) (Challenge, error) {
	var out Challenge
	err := c.do(ctx, http.MethodPost, "/web3/challenge", "", nil, &out)
	return out, err
}

func (c *HTTPClient) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, "/web3/login", "", req, &out)
	return out, err
}

func (c *HTTPClient) Verify(ctx context.Context, address, message, signature string) (string, error) {
	var out struct {
		Address string `json:"address"`
		Valid   bool   `json:"valid"`
	}
	body := map[string]string{"address": address, "message": message, "signature": signature}
	if err := c.do(ctx, http.MethodPost, "/web3/verify", "", body, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

func (c *HTTPClient) Tokens(ctx context.Context, token string) ([]SessionInfo, error) {
	var out []SessionInfo
	err := c.do(ctx, http.MethodGet, "/web3/tokens", token, nil, &out)
	return out, err
}

func (c *HTTPClient) Deactivate(ctx context.Context, token, sessionID string) (bool, error) {
	var out struct {
		Logout bool `json:"logout"`
	}
	err := c.do(ctx, http.MethodPost, "/web3/deactivate", token, map[string]string{"token_id": sessionID}, &out)
	return out.Logout, err
}

func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/web3/logout", token, nil, nil)
}

func (c *HTTPClient) Addresses(ctx context.Context, token string) ([]Address, error) {
	var out []Address
	err := c.do(ctx, http.MethodGet, "/web3/addresses", token, nil, &out)
	return out, err
}

func (c *HTTPClient) LinkAddress(ctx context.Context, token, address, network string) (Address, error) {
	var out Address
	body := map[string]string{"address": address, "network": network}
	err := c.do(ctx, http.MethodPost, "/web3/addresses", token, body, &out)
	return out, err
}

func (c *HTTPClient) SetAddressAuth(ctx context.Context, token string, req SetAuthRequest) (Address, error) {
	var out Address
	path := "/web3/addresses/" + url.PathEscape(req.Address) + "/auth"
	err := c.do(ctx, http.MethodPost, path, token, req, &out)
	return out, err
}

func (c *HTTPClient) RequestSync(ctx context.Context, token, kind string) error {
	return c.do(ctx, http.MethodPost, "/web3/sync/"+url.PathEscape(kind), token, nil, nil)
}

func (c *HTTPClient) Chains(ctx context.Context) ([]Chain, error) {
	var out []Chain
	err := c.do(ctx, http.MethodGet, "/chains", "", nil, &out)
	return out, err
}
