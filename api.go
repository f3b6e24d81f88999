package watercompany

/*
The api.go defines the methods that can be called from the outside. The
Client talks JSON over HTTP to a running service; the CLI in app/ is built on
top of it.
*/

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

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ServiceName is used in logs and the CLI.
const ServiceName = "WaterCompanyService"

// APIError is returned when the service answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Client is a structure to communicate with the water company service
type Client struct {
	baseURL string
	http    *http.Client
	// Token is sent as bearer token when set.
	Token string
}

// NewClient instantiates a new Client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, reply interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return xerrors.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	log.Lvl4("Sending", method, req.URL)
	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e ErrorReply
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if reply == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return xerrors.Errorf("decoding reply: %w", err)
	}
	return nil
}

// Register creates a user. It can log in once an admin approved it.
func (c *Client) Register(ctx context.Context, username, password, role string) (*UserReply, error) {
	reply := &UserReply{}
	err := c.do(ctx, http.MethodPost, "/auth/register", &RegisterRequest{
		Username: username,
		Password: password,
		Role:     role,
	}, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// ApproveUser lets username log in, needs an admin token.
func (c *Client) ApproveUser(ctx context.Context, username string) (*UserReply, error) {
	reply := &UserReply{}
	path := "/auth/users/" + url.PathEscape(username) + "/approve"
	if err := c.do(ctx, http.MethodPatch, path, nil, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Login fetches a token and keeps it for the following calls.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginReply, error) {
	reply := &LoginReply{}
	err := c.do(ctx, http.MethodPost, "/auth/login", &LoginRequest{
		Username: username,
		Password: password,
	}, reply)
	if err != nil {
		return nil, err
	}
	c.Token = reply.Token
	return reply, nil
}

// CreatePack creates a new water pack.
func (c *Client) CreatePack(ctx context.Context) (*PackReply, error) {
	reply := &PackReply{}
	if err := c.do(ctx, http.MethodPost, "/packs", nil, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) transition(ctx context.Context, serial, action string, body interface{}) (*PackReply, error) {
	reply := &PackReply{}
	path := "/packs/" + url.PathEscape(serial) + "/" + action
	if err := c.do(ctx, http.MethodPatch, path, body, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Test moves a pack to the inspector.
func (c *Client) Test(ctx context.Context, serial string) (*PackReply, error) {
	return c.transition(ctx, serial, "test", nil)
}

// Approve approves an inspected pack.
func (c *Client) Approve(ctx context.Context, serial string) (*PackReply, error) {
	return c.transition(ctx, serial, "approve", nil)
}

// Reject rejects an inspected pack for reason.
func (c *Client) Reject(ctx context.Context, serial, reason string) (*PackReply, error) {
	return c.transition(ctx, serial, "reject", &RejectRequest{Reason: reason})
}

// Distribute marks an approved pack as distributed.
func (c *Client) Distribute(ctx context.Context, serial string) (*PackReply, error) {
	return c.transition(ctx, serial, "distribute", nil)
}

// Sell marks a distributed pack as sold.
func (c *Client) Sell(ctx context.Context, serial string) (*PackReply, error) {
	return c.transition(ctx, serial, "sell", nil)
}

// Verify returns the ledger view of a pack.
func (c *Client) Verify(ctx context.Context, serial string) (*VerifyReply, error) {
	reply := &VerifyReply{}
	if err := c.do(ctx, http.MethodGet, "/packs/verify/"+url.PathEscape(serial), nil, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Stats returns pack and ledger counters.
func (c *Client) Stats(ctx context.Context) (*StatsReply, error) {
	reply := &StatsReply{}
	if err := c.do(ctx, http.MethodGet, "/packs/stats", nil, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Chain returns every block of the ledger.
func (c *Client) Chain(ctx context.Context) (*ChainReply, error) {
	reply := &ChainReply{}
	if err := c.do(ctx, http.MethodGet, "/chain", nil, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Validate runs the ledger integrity check. An invalid ledger is reported in
// the reply, not as an error.
func (c *Client) Validate(ctx context.Context) (*ValidateReply, error) {
	reply := &ValidateReply{}
	err := c.do(ctx, http.MethodGet, "/chain/validate", nil, reply)
	var apiErr *APIError
	if xerrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusInternalServerError {
		return &ValidateReply{Valid: false, Error: apiErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Pending lists the transactions waiting for a block.
func (c *Client) Pending(ctx context.Context) (*PendingReply, error) {
	reply := &PendingReply{}
	if err := c.do(ctx, http.MethodGet, "/chain/pending", nil, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
