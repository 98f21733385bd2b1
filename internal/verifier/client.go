// Package verifier submits contract sources to the network's block explorer
// and polls until the explorer has matched them against on-chain bytecode.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ExplorerError is returned when the explorer API rejects a request outright,
// as opposed to a verification that was accepted but failed to match.
type ExplorerError struct {
	Action  string
	Message string
}

func (e *ExplorerError) Error() string {
	return fmt.Sprintf("explorer %s: %s", e.Action, e.Message)
}

// EtherscanClient talks to an Etherscan v2 compatible verification API.
// The chain is selected per-request via the chainid parameter.
type EtherscanClient struct {
	apiURL     string
	apiKey     string
	chainID    uint64
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures an EtherscanClient
type Option func(*EtherscanClient)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *EtherscanClient) {
		client.httpClient = c
	}
}

// WithRateLimit caps outbound requests per second. Free-tier explorer keys
// reject bursts above 5 rps.
func WithRateLimit(rps float64) Option {
	return func(client *EtherscanClient) {
		client.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewEtherscanClient creates a verification client for the given chain.
func NewEtherscanClient(apiURL, apiKey string, chainID uint64, opts ...Option) *EtherscanClient {
	c := &EtherscanClient{
		apiURL:  apiURL,
		apiKey:  apiKey,
		chainID: chainID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(4), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// apiResponse is the envelope every Etherscan endpoint answers with.
// Status "1" means the call succeeded; Result carries either the payload
// or a human-readable failure reason.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// SubmitRequest contains everything the explorer needs to recompile the
// contract and compare it against the deployed bytecode.
type SubmitRequest struct {
	Address         string
	ContractName    string // fully qualified, e.g. src/Counter.sol:Counter
	StandardJSON    []byte
	CompilerVersion string // long form, e.g. v0.8.28+commit.7893614a
	ConstructorArgs string // ABI-encoded, hex without 0x prefix
}

// SubmitSource submits standard-JSON sources for verification and returns
// the GUID used to poll for the outcome. A contract the explorer has already
// verified returns ErrAlreadyVerified.
func (c *EtherscanClient) SubmitSource(ctx context.Context, req SubmitRequest) (string, error) {
	form := url.Values{}
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("codeformat", "solidity-standard-json-input")
	form.Set("contractaddress", req.Address)
	form.Set("contractname", req.ContractName)
	form.Set("sourceCode", string(req.StandardJSON))
	form.Set("compilerversion", req.CompilerVersion)
	if req.ConstructorArgs != "" {
		form.Set("constructorArguements", req.ConstructorArgs) // sic, the API expects the typo
	}

	resp, err := c.post(ctx, form)
	if err != nil {
		return "", err
	}

	if resp.Status != "1" {
		if isAlreadyVerified(resp.Result) {
			return "", ErrAlreadyVerified
		}
		return "", &ExplorerError{Action: "verifysourcecode", Message: resp.Result}
	}

	return resp.Result, nil
}

// CheckOutcome is one poll of a pending verification.
type CheckOutcome int

const (
	// OutcomePending means the explorer is still compiling.
	OutcomePending CheckOutcome = iota
	// OutcomeVerified means the source matched the deployed bytecode.
	OutcomeVerified
	// OutcomeFailed means the explorer could not match the source.
	OutcomeFailed
)

// CheckStatus polls a submitted verification by GUID.
func (c *EtherscanClient) CheckStatus(ctx context.Context, guid string) (CheckOutcome, string, error) {
	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "checkverifystatus")
	q.Set("guid", guid)

	resp, err := c.get(ctx, q)
	if err != nil {
		return OutcomePending, "", err
	}

	switch {
	case strings.HasPrefix(resp.Result, "Pass"):
		return OutcomeVerified, resp.Result, nil
	case isAlreadyVerified(resp.Result):
		return OutcomeVerified, resp.Result, nil
	case strings.Contains(resp.Result, "Pending"):
		return OutcomePending, resp.Result, nil
	case strings.HasPrefix(resp.Result, "Fail"):
		return OutcomeFailed, resp.Result, nil
	}

	if resp.Status != "1" {
		return OutcomePending, "", &ExplorerError{Action: "checkverifystatus", Message: resp.Result}
	}
	return OutcomePending, resp.Result, nil
}

func (c *EtherscanClient) post(ctx context.Context, form url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *EtherscanClient) get(ctx context.Context, q url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint()+"&"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

// endpoint returns the API URL with the chain selector and key applied.
func (c *EtherscanClient) endpoint() string {
	q := url.Values{}
	q.Set("chainid", strconv.FormatUint(c.chainID, 10))
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	sep := "?"
	if strings.Contains(c.apiURL, "?") {
		sep = "&"
	}
	return c.apiURL + sep + q.Encode()
}

func (c *EtherscanClient) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading explorer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ExplorerError{
			Action:  "http",
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, fmt.Errorf("decoding explorer response: %w", err)
	}
	return &api, nil
}

func isAlreadyVerified(result string) bool {
	s := strings.ToLower(result)
	return strings.Contains(s, "already verified")
}
