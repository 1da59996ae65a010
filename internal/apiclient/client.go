// Package apiclient is a small HTTP client for the pitaka API used by the smoke
// and load tools.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pitaka.app/internal/bank"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
}

// Code extracts the HTTP status from err, or 0.
func Code(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type Client struct {
	base  string
	http  *http.Client
	token string
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: base, http: hc}
}

// WithToken returns a copy of c authenticated as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Call sends in as JSON and decodes the response data into out. POSTs carry a
// fresh Idempotency-Key.
func (c *Client) Call(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	if resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// Session is a registered user with a token and their MAIN account.
type Session struct {
	*Client
	User    bank.User
	Account bank.Account
}

// Register creates a throwaway user and returns a client authenticated as them.
func (c *Client) Register(ctx context.Context, fullName string) (Session, error) {
	var out struct {
		Token   string       `json:"token"`
		User    bank.User    `json:"user"`
		Account bank.Account `json:"account"`
	}
	err := c.Call(ctx, http.MethodPost, "/v1/auth/register", map[string]string{
		"email":     fmt.Sprintf("load-%s@example.com", uuid.NewString()[:12]),
		"full_name": fullName,
		"password":  "load-password",
	}, &out)
	if err != nil {
		return Session{}, err
	}
	return Session{Client: c.WithToken(out.Token), User: out.User, Account: out.Account}, nil
}

func (s Session) Deposit(ctx context.Context, amount bank.Amount) (bank.MovementResult, error) {
	var res bank.MovementResult
	err := s.Call(ctx, http.MethodPost, "/v1/transactions/deposit", bank.DepositRequest{
		AccountID: s.Account.ID, Amount: amount,
	}, &res)
	return res, err
}

// Send moves amount from the session's MAIN account to another user's account number.
func (s Session) Send(ctx context.Context, toNumber string, amount bank.Amount, desc string) (bank.TransferResult, error) {
	var res bank.TransferResult
	err := s.Call(ctx, http.MethodPost, "/v1/transfers/external", bank.ExternalTransferRequest{
		FromAccountID:          s.Account.ID,
		RecipientAccountNumber: toNumber,
		Amount:                 amount,
		Description:            desc,
	}, &res)
	return res, err
}

func (s Session) Balance(ctx context.Context) (bank.Amount, error) {
	var a bank.Account
	if err := s.Call(ctx, http.MethodGet, "/v1/accounts/"+s.Account.ID, nil, &a); err != nil {
		return 0, err
	}
	return a.Balance, nil
}
